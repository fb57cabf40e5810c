package processor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/aliskhannn/watermarker/internal/model"
)

// shadowStrength scales the text opacity for the optional drop shadow.
const shadowStrength = 0.5

var errEmptyText = errors.New("watermark text is empty")

// Renderer draws text watermarks. Parsed fonts are cached and shared;
// faces are built per render because they are not safe for concurrent use.
type Renderer struct {
	mu    sync.Mutex
	fonts map[string]*truetype.Font
}

// NewRenderer creates a Renderer with the embedded Go Regular font as
// the default face.
func NewRenderer() *Renderer {
	return &Renderer{fonts: make(map[string]*truetype.Font)}
}

// Validate checks the parts of cfg that would make every render fail.
func Validate(cfg model.WatermarkConfig) error {
	if strings.TrimSpace(cfg.Text) == "" {
		return model.NewError(model.ErrRender, "", errEmptyText)
	}
	if _, err := ParseColor(cfg.Color); err != nil {
		return model.NewError(model.ErrRender, "", err)
	}
	return nil
}

// Render returns a copy of img with the watermark described by cfg
// composited on top. The input image is never modified.
func (r *Renderer) Render(img image.Image, cfg model.WatermarkConfig) (image.Image, error) {
	if strings.TrimSpace(cfg.Text) == "" {
		return nil, errEmptyText
	}

	col, err := ParseColor(cfg.Color)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContextForImage(img)
	w, h := dc.Width(), dc.Height()

	size := FontSize(cfg, w)
	face, err := r.face(cfg.FontPath, size)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(face)

	textW, _ := dc.MeasureString(cfg.Text)
	layout := Plan(w, h, cfg, size, textW)

	alpha := cfg.EffectiveOpacity()
	red, green, blue := float64(col.R)/255, float64(col.G)/255, float64(col.B)/255

	dc.Translate(layout.OriginX, layout.OriginY)
	dc.Rotate(layout.Angle)

	for _, p := range layout.Placements {
		if cfg.Shadow {
			dc.SetRGBA(0, 0, 0, alpha*shadowStrength)
			dc.DrawStringAnchored(cfg.Text, p.X+1, p.Y+1, p.AX, p.AY)
		}
		dc.SetRGBA(red, green, blue, alpha)
		dc.DrawStringAnchored(cfg.Text, p.X, p.Y, p.AX, p.AY)
	}

	return dc.Image(), nil
}

func (r *Renderer) face(path string, size float64) (font.Face, error) {
	f, err := r.font(path)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

func (r *Renderer) font(path string) (*truetype.Font, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.fonts[path]; ok {
		return f, nil
	}

	data := goregular.TTF
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load font: %w", err)
		}
	}

	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	r.fonts[path] = f

	return f, nil
}

// ParseColor parses "#RRGGBB" or "#RGB", with or without the leading '#'.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}

	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
