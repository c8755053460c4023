package survey

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Angles are in degrees throughout. Bearings follow the compass convention:
// 0 is +y (north), increasing clockwise, so atan2 takes (dx, dy).

// round rounds v to the given number of decimals. NaN and Inf pass through.
func round(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*p) / p
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// NormalizeSigned maps an angle to (-180, 180] via atan2(sin, cos), rounded
// to 2 decimals. Use it for differences of headings.
func NormalizeSigned(a float64) float64 {
	r := deg2rad(a)
	s := rad2deg(math.Atan2(math.Sin(r), math.Cos(r)))
	s = round(s, 2)
	if s == -180 {
		s = 180
	}
	return s
}

// Normalize360 maps an angle to [0, 360), rounded to 2 decimals.
func Normalize360(a float64) float64 {
	n := math.Mod(math.Mod(a, 360)+360, 360)
	n = round(n, 2)
	if n >= 360 {
		n -= 360
	}
	return n
}

// Bearing returns the compass bearing of the displacement (dx, dy) rounded to
// 2 decimals. A zero displacement has no direction and yields NaN.
func Bearing(dx, dy float64) float64 {
	if dx == 0 && dy == 0 {
		return math.NaN()
	}
	return round(rad2deg(math.Atan2(dx, dy)), 2)
}

// BearingBetween returns Bearing(p1.x-p2.x, p1.y-p2.y).
func BearingBetween(p1, p2 orb.Point) float64 {
	return Bearing(p1[0]-p2[0], p1[1]-p2[1])
}

// CircularMedian drops NaNs, takes the median of the sine and cosine
// components separately and recombines them. Returns NaN for no input.
func CircularMedian(angles []float64) float64 {
	sins := make([]float64, 0, len(angles))
	coss := make([]float64, 0, len(angles))
	for _, a := range angles {
		if math.IsNaN(a) {
			continue
		}
		r := deg2rad(a)
		sins = append(sins, math.Sin(r))
		coss = append(coss, math.Cos(r))
	}
	if len(sins) == 0 {
		return math.NaN()
	}
	return round(rad2deg(math.Atan2(median(sins), median(coss))), 2)
}

// median of the non-NaN values, averaging the two middle values for even
// counts. NaN when nothing is left.
func median(values []float64) float64 {
	return quantile(values, 0.5)
}

// quantile computes the q-th quantile of the non-NaN values with linear
// interpolation between closest ranks.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// nanMin returns the smaller of a and b, ignoring a NaN operand.
func nanMin(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Min(a, b)
}

// nanMax returns the larger of a and b, ignoring a NaN operand.
func nanMax(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Max(a, b)
}

// sign returns -1, 0 or 1; NaN stays NaN.
func sign(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return v
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
