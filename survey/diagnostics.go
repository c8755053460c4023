package survey

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// SaveSegmentationPlot writes a PNG showing each walked line in its own
// colour with the break points marked. Used to check the segmentation
// thresholds against a real walk.
func SaveSegmentationPlot(s *Session, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %d lines", s.Info.ID, len(s.Lines))
	p.X.Label.Text = "x [m]"
	p.Y.Label.Text = "y [m]"

	colors := lineColors(len(s.Lines))
	for i, l := range s.Lines {
		pts := make(plotter.XYs, 0, len(l.Geometry))
		for _, g := range l.Geometry {
			pts = append(pts, plotter.XY{X: g[0], Y: g[1]})
		}
		ln, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("line %s: %w", l.ID, err)
		}
		ln.Color = colors[i]
		ln.Width = vg.Points(1.5)
		p.Add(ln)
	}

	var breaks plotter.XYs
	for _, pt := range s.Points {
		if pt.IsMeas() && pt.Split == 1 && !math.IsNaN(pt.X) {
			breaks = append(breaks, plotter.XY{X: pt.X, Y: pt.Y})
		}
	}
	if len(breaks) > 0 {
		sc, err := plotter.NewScatter(breaks)
		if err != nil {
			return fmt.Errorf("break points: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		sc.GlyphStyle.Color = color.Black
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("split", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}

// lineColors spreads n hues around the colour wheel
func lineColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	hue := func(t float64) float64 {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		switch {
		case t < 1.0/6:
			return p + (q-p)*6*t
		case t < 0.5:
			return q
		case t < 2.0/3:
			return p + (q-p)*(2.0/3-t)*6
		}
		return p
	}
	to8 := func(v float64) uint8 { return uint8(math.Round(v * 255)) }
	return to8(hue(h + 1.0/3)), to8(hue(h)), to8(hue(h - 1.0/3))
}
