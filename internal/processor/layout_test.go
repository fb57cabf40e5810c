package processor

import (
	"math"
	"testing"

	"github.com/aliskhannn/watermarker/internal/model"
)

func TestFontSize_Auto(t *testing.T) {
	tests := []struct {
		width int
		want  float64
	}{
		{1, 12},
		{100, 12},
		{240, 12},
		{250, 13}, // 12.5 rounds half away from zero
		{260, 13},
		{1000, 50},
		{1920, 96},
		{4031, 202},
	}

	for _, tt := range tests {
		got := FontSize(model.WatermarkConfig{}, tt.width)
		want := math.Max(12, math.Round(float64(tt.width)*0.05))
		if got != tt.want || got != want {
			t.Errorf("FontSize(width=%d) = %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestFontSize_Explicit(t *testing.T) {
	got := FontSize(model.WatermarkConfig{FontSize: 7}, 4000)
	if got != 7 {
		t.Errorf("FontSize = %v, want 7", got)
	}
}

func TestPlan_TileGridUnrotated(t *testing.T) {
	cfg := model.WatermarkConfig{Text: "hello", Position: model.PositionTile}
	w, h := 300, 200
	size := FontSize(cfg, w)
	textW := 10.0 // narrower than the 0.6 * size * len estimate

	l := Plan(w, h, cfg, size, textW)

	wantW := size*5*0.6 + 80
	wantH := size*1.5 + 80
	if l.CellW != wantW || l.CellH != wantH {
		t.Fatalf("cell = %vx%v, want %vx%v", l.CellW, l.CellH, wantW, wantH)
	}
	if l.OriginX != 150 || l.OriginY != 100 || l.Angle != 0 {
		t.Fatalf("origin/angle = (%v,%v,%v), want (150,100,0)", l.OriginX, l.OriginY, l.Angle)
	}

	// In image coordinates the grid starts one cell before the top-left
	// corner and stops before one cell past the far edge.
	first := l.Placements[0]
	if x, y := first.X+l.OriginX, first.Y+l.OriginY; x != -wantW || y != -wantH {
		t.Errorf("first cell at (%v,%v), want (%v,%v)", x, y, -wantW, -wantH)
	}
	for _, p := range l.Placements {
		x, y := p.X+l.OriginX, p.Y+l.OriginY
		if x >= float64(w)+wantW || y >= float64(h)+wantH {
			t.Errorf("cell at (%v,%v) lies past the far edge", x, y)
		}
	}
}

func TestPlan_TileUsesMeasuredWidthWhenWider(t *testing.T) {
	cfg := model.WatermarkConfig{Text: "ab", Position: model.PositionTile, FontSize: 10}
	l := Plan(100, 100, cfg, 10, 500)
	if l.CellW != 580 {
		t.Errorf("CellW = %v, want 580", l.CellW)
	}
}

func TestPlan_TileCoversRotatedCanvas(t *testing.T) {
	sizes := [][2]int{{100, 100}, {1000, 100}, {100, 1000}, {37, 512}, {1920, 1080}, {1, 1}}
	angles := []float64{-90, -75, -45, -30, -1, 0, 10, 45, 60, 89.5, 90}

	for _, sz := range sizes {
		for _, deg := range angles {
			w, h := sz[0], sz[1]
			cfg := model.WatermarkConfig{Text: "© watermark", Position: model.PositionTile, Rotation: deg}
			size := FontSize(cfg, w)
			l := Plan(w, h, cfg, size, size*4)

			if len(l.Placements) == 0 {
				t.Fatalf("%dx%d@%v: no placements", w, h, deg)
			}

			// Sample the canvas densely, including every corner and edge.
			const steps = 24
			for i := 0; i <= steps; i++ {
				for j := 0; j <= steps; j++ {
					px := float64(w) * float64(i) / steps
					py := float64(h) * float64(j) / steps
					if !covered(l, px, py) {
						t.Fatalf("%dx%d@%v: point (%v,%v) not covered", w, h, deg, px, py)
					}
				}
			}
		}
	}
}

func covered(l Layout, px, py float64) bool {
	lx, ly := ToLocal(px-l.OriginX, py-l.OriginY, l.Angle)
	for _, p := range l.Placements {
		if lx >= p.X && lx < p.X+l.CellW && ly >= p.Y && ly < p.Y+l.CellH {
			return true
		}
	}
	return false
}

func TestPlan_SingleDrawLayouts(t *testing.T) {
	w, h := 400, 300
	tests := []struct {
		pos              model.Position
		originX, originY float64
		want             Placement
	}{
		{model.PositionCenter, 200, 150, Placement{X: 0, Y: 0, AX: 0.5, AY: 0.5}},
		{model.PositionTopLeft, 0, 0, Placement{X: 8, Y: 8, AX: 0, AY: 1}},
		{model.PositionBottomRight, 400, 300, Placement{X: -8, Y: -8, AX: 1, AY: 0}},
	}

	for _, tt := range tests {
		t.Run(string(tt.pos), func(t *testing.T) {
			cfg := model.WatermarkConfig{Text: "x", Position: tt.pos, Rotation: 30}
			l := Plan(w, h, cfg, 20, 10)

			if l.OriginX != tt.originX || l.OriginY != tt.originY {
				t.Errorf("origin = (%v,%v), want (%v,%v)", l.OriginX, l.OriginY, tt.originX, tt.originY)
			}
			if math.Abs(l.Angle-math.Pi/6) > 1e-12 {
				t.Errorf("angle = %v, want pi/6", l.Angle)
			}
			if len(l.Placements) != 1 || l.Placements[0] != tt.want {
				t.Errorf("placements = %+v, want [%+v]", l.Placements, tt.want)
			}
		})
	}
}

func TestPlan_RotationClamped(t *testing.T) {
	cfg := model.WatermarkConfig{Text: "x", Position: model.PositionCenter, Rotation: 400}
	l := Plan(10, 10, cfg, 12, 5)
	if math.Abs(l.Angle-math.Pi/2) > 1e-12 {
		t.Errorf("angle = %v, want pi/2", l.Angle)
	}
}
