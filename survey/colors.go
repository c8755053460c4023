package survey

import (
	"fmt"
	"image/color"
	"math"
)

// MissingColor marks points without a value
var MissingColor = color.RGBA{R: 255, G: 0, B: 255, A: 255}

// rdBuR is the ColorBrewer RdBu diverging scale reversed: blue for low values,
// red for high ones.
var rdBuR = []color.RGBA{
	{5, 48, 97, 255},
	{33, 102, 172, 255},
	{67, 147, 195, 255},
	{146, 197, 222, 255},
	{209, 229, 240, 255},
	{247, 247, 247, 255},
	{253, 219, 199, 255},
	{244, 165, 130, 255},
	{214, 96, 77, 255},
	{178, 24, 43, 255},
	{103, 0, 31, 255},
}

// DefaultColorRange is used when a session has no field values at all
var DefaultColorRange = ColorRange{Min: -0.5, Max: 0.5}

// ComputeColorRange returns the header range when present. Otherwise the
// range is symmetric around zero with cmax = max(|q40|, |q60|) of the
// normalised measurement values.
func ComputeColorRange(points []Point, header *ColorRange) ColorRange {
	var values []float64
	for _, p := range points {
		if p.IsMeas() && !math.IsNaN(p.VoltageNorm) {
			values = append(values, p.VoltageNorm)
		}
	}
	if len(values) == 0 {
		return DefaultColorRange
	}
	if header != nil {
		return *header
	}
	q40 := quantile(values, 0.4)
	q60 := quantile(values, 0.6)
	cmax := math.Max(math.Abs(q40), math.Abs(q60))
	return ColorRange{Min: -cmax, Max: cmax}
}

// Sample maps v onto the scale, clamped to the range. A zero-width range
// maps everything to the midpoint.
func (cr ColorRange) Sample(v float64) color.RGBA {
	if math.IsNaN(v) {
		return MissingColor
	}
	t := 0.5
	if span := cr.Max - cr.Min; span > 0 {
		t = (math.Max(cr.Min, math.Min(cr.Max, v)) - cr.Min) / span
	}
	return sampleScale(rdBuR, t)
}

// Hex is Sample formatted as #rrggbb
func (cr ColorRange) Hex(v float64) string {
	return hexColor(cr.Sample(v))
}

func sampleScale(scale []color.RGBA, t float64) color.RGBA {
	pos := t * float64(len(scale)-1)
	lo := int(math.Floor(pos))
	if lo >= len(scale)-1 {
		return scale[len(scale)-1]
	}
	if lo < 0 {
		return scale[0]
	}
	f := pos - float64(lo)
	a, b := scale[lo], scale[lo+1]
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// AssignColors stores the raw and normalised colours on every point
func AssignColors(points []Point, cr ColorRange) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	for i := range out {
		out[i].ColorRaw = cr.Hex(out[i].VoltageRaw)
		out[i].ColorNorm = cr.Hex(out[i].VoltageNorm)
	}
	return out
}
