package processor

import (
	"math"
	"unicode/utf8"

	"github.com/aliskhannn/watermarker/internal/model"
)

const (
	// inset is the distance between corner-anchored text and the corner.
	inset = 8.0
	// tileGap is added to both tile cell dimensions.
	tileGap = 80.0

	minAutoFontSize = 12
	autoFontRatio   = 0.05
)

// Placement is one text draw in the plan's local coordinate space.
// AX and AY are gg anchors: (0,0) is left/baseline, (0.5,0.5) centered,
// (1,0) right/baseline, (0,1) left/top.
type Placement struct {
	X, Y   float64
	AX, AY float64
}

// Layout is a drawing plan: translate to Origin, rotate by Angle
// (radians), then draw every placement. For tiled plans each placement
// owns the CellW x CellH cell whose top-left corner is (X, Y).
type Layout struct {
	OriginX, OriginY float64
	Angle            float64
	Placements       []Placement
	CellW, CellH     float64
}

// FontSize returns the effective font size in pixels for an image of the
// given width: the configured size if positive, else 5% of the width but
// never below 12.
func FontSize(cfg model.WatermarkConfig, width int) float64 {
	if cfg.FontSize > 0 {
		return float64(cfg.FontSize)
	}
	return math.Max(minAutoFontSize, math.Round(float64(width)*autoFontRatio))
}

// Plan computes where the watermark text goes on a w x h image.
// textW is the measured width of the text at fontSize.
func Plan(w, h int, cfg model.WatermarkConfig, fontSize, textW float64) Layout {
	fw, fh := float64(w), float64(h)
	angle := cfg.EffectiveRotation() * math.Pi / 180

	switch cfg.Position {
	case model.PositionCenter:
		return Layout{
			OriginX: fw / 2, OriginY: fh / 2,
			Angle:      angle,
			Placements: []Placement{{X: 0, Y: 0, AX: 0.5, AY: 0.5}},
		}
	case model.PositionTopLeft:
		return Layout{
			Angle:      angle,
			Placements: []Placement{{X: inset, Y: inset, AX: 0, AY: 1}},
		}
	case model.PositionBottomRight:
		return Layout{
			OriginX: fw, OriginY: fh,
			Angle:      angle,
			Placements: []Placement{{X: -inset, Y: -inset, AX: 1, AY: 0}},
		}
	default:
		return tilePlan(fw, fh, angle, cfg.Text, fontSize, textW)
	}
}

// tilePlan repeats the text over a grid in a frame rotated about the
// image center. The grid starts one cell before and ends one cell past
// the canvas as seen from the rotated frame, so rotated corners are
// covered as well.
func tilePlan(w, h, angle float64, text string, fontSize, textW float64) Layout {
	stepX := math.Max(textW, fontSize*float64(utf8.RuneCountInString(text))*0.6) + tileGap
	stepY := fontSize*1.5 + tileGap

	l := Layout{
		OriginX: w / 2, OriginY: h / 2,
		Angle: angle,
		CellW: stepX, CellH: stepY,
	}

	// Extent of the canvas in the rotated frame.
	minX, minY, maxX, maxY := rotatedBounds(w, h, angle)

	// Grid lines sit at -w/2 + k*stepX, so with no rotation the grid runs
	// from -stepX to w+stepX in image coordinates.
	startX := -w/2 - stepX*(1+extraCells(-w/2-minX, stepX))
	startY := -h/2 - stepY*(1+extraCells(-h/2-minY, stepY))
	endX := maxX + stepX
	endY := maxY + stepY

	for y := startY; y < endY; y += stepY {
		for x := startX; x < endX; x += stepX {
			l.Placements = append(l.Placements, Placement{X: x, Y: y, AX: 0, AY: 1})
		}
	}

	return l
}

// rotatedBounds returns the bounding box of the w x h canvas expressed in
// a frame centered on the canvas and rotated by angle.
func rotatedBounds(w, h, angle float64) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)

	for _, c := range [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		x, y := ToLocal(c[0]-w/2, c[1]-h/2, angle)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	return minX, minY, maxX, maxY
}

// extraCells is the number of whole cells needed to reach overflow past
// the unrotated edge. Rounding noise below one part in 1e9 is ignored.
func extraCells(overflow, step float64) float64 {
	return math.Max(0, math.Ceil(overflow/step-1e-9))
}

// ToLocal maps an offset (dx, dy) from a rotation origin into the frame
// rotated by angle, i.e. applies the inverse rotation.
func ToLocal(dx, dy, angle float64) (float64, float64) {
	sin, cos := math.Sincos(angle)
	return dx*cos + dy*sin, -dx*sin + dy*cos
}
