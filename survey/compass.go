package survey

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ComputeCompass derives a compass heading for every point from the raw
// horizontal magnetometer axes. Each axis is centred on the midpoint of its
// session-wide range before taking the angle; NaN axes give a NaN heading.
func ComputeCompass(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)

	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		if !math.IsNaN(p.CompassX) {
			xs = append(xs, p.CompassX)
		}
		if !math.IsNaN(p.CompassY) {
			ys = append(ys, p.CompassY)
		}
	}
	if len(xs) == 0 || len(ys) == 0 {
		for i := range out {
			out[i].Compass = math.NaN()
		}
		return out
	}

	midX := (floats.Min(xs) + floats.Max(xs)) / 2
	midY := (floats.Min(ys) + floats.Max(ys)) / 2

	for i := range out {
		cx := out[i].CompassX - midX
		cy := out[i].CompassY - midY
		if cx == 0 && cy == 0 {
			out[i].Compass = math.NaN()
			continue
		}
		out[i].Compass = Normalize360(rad2deg(math.Atan2(cy, cx)) + 90)
	}
	return out
}
