package model

import (
	"fmt"
	"math"
	"strings"
)

// Position selects the layout strategy used to place the watermark text.
type Position string

const (
	PositionTile        Position = "tile"
	PositionCenter      Position = "center"
	PositionTopLeft     Position = "top-left"
	PositionBottomRight Position = "bottom-right"
)

// ParsePosition converts a user-supplied name into a Position.
// It accepts a few spellings ("topleft", "top_left", "TopLeft").
func ParsePosition(s string) (Position, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch norm {
	case "tile", "":
		return PositionTile, nil
	case "center", "centre":
		return PositionCenter, nil
	case "topleft":
		return PositionTopLeft, nil
	case "bottomright":
		return PositionBottomRight, nil
	default:
		return "", fmt.Errorf("unknown watermark position: %q", s)
	}
}

// WatermarkConfig is an immutable snapshot of the watermark parameters
// shared read-only by every render of a batch run.
type WatermarkConfig struct {
	Text     string   `json:"text"`
	Color    string   `json:"color"`     // hex RGB, e.g. "#ffffff"
	Opacity  float64  `json:"opacity"`   // clamped into [0,1]
	FontSize int      `json:"font_size"` // 0 = auto, derived from image width
	Position Position `json:"position"`
	Rotation float64  `json:"rotation"` // degrees, clamped into [-90,90]

	FontPath string `json:"font_path,omitempty"` // optional TTF file, embedded face otherwise
	Shadow   bool   `json:"shadow,omitempty"`    // draw a dark offset copy under the text
}

// EffectiveOpacity returns Opacity clamped into [0,1].
func (c WatermarkConfig) EffectiveOpacity() float64 {
	return clamp(c.Opacity, 0, 1)
}

// EffectiveRotation returns Rotation clamped into [-90,90]. NaN means
// no rotation.
func (c WatermarkConfig) EffectiveRotation() float64 {
	if math.IsNaN(c.Rotation) {
		return 0
	}
	return clamp(c.Rotation, -90, 90)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
