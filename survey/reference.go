package survey

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"
)

// DefaultReferenceOffset is how far the reference point sits from the
// footprint centroid. It only has to be far enough to fix a stable bearing.
const DefaultReferenceOffset = 1000.0

// ReferenceAngle returns the dominant walking direction of a survey: the
// length-weighted mean of the line orientations (each mod 180). NaN when
// there are no lines or every line has zero length.
func ReferenceAngle(lines []Line) float64 {
	var sins, coss, weights []float64
	for _, l := range lines {
		if math.IsNaN(l.Angle) || math.IsNaN(l.Length) {
			continue
		}
		r := deg2rad(l.Angle)
		sins = append(sins, math.Sin(r))
		coss = append(coss, math.Cos(r))
		weights = append(weights, l.Length)
	}
	if len(weights) == 0 {
		return math.NaN()
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return math.NaN()
	}

	s := stat.Mean(sins, weights)
	c := stat.Mean(coss, weights)
	return rad2deg(math.Atan2(s, c))
}

// ReferencePoint places the bearing origin offset units from the centroid
// along angle. A NaN angle yields a NaN point.
func ReferencePoint(centroid orb.Point, angle, offset float64) orb.Point {
	r := deg2rad(angle)
	return orb.Point{
		centroid[0] + offset*math.Sin(r),
		centroid[1] + offset*math.Cos(r),
	}
}

// ComputeRefBearing stores, for every point, its distance to ref and the
// bearing that faces ref from the point.
func ComputeRefBearing(points []Point, ref orb.Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	for i := range out {
		dx := out[i].X - ref[0]
		dy := out[i].Y - ref[1]
		out[i].RefDist = round(math.Hypot(dx, dy), 2)
		if dx == 0 && dy == 0 {
			out[i].RefBearing = math.NaN()
			continue
		}
		out[i].RefBearing = Normalize360(NormalizeSigned(rad2deg(math.Atan2(dx, dy)) + 180))
	}
	return out
}

// ComputeHdgAvg blends each point's line heading with its compass heading:
// hdg_avg = compass + signed(line_heading - compass)/2. Without lines every
// value is NaN.
func ComputeHdgAvg(points []Point, haveLines bool) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	for i := range out {
		if !haveLines {
			out[i].HdgAvg = math.NaN()
			out[i].DAngle = math.NaN()
			continue
		}
		diff := NormalizeSigned(out[i].LineHeading - out[i].Compass)
		out[i].DAngle = diff
		out[i].HdgAvg = out[i].Compass + diff/2
	}
	return out
}

// ComputeRefFacing stores signed(ref_bearing - hdg_avg) on every point
func ComputeRefFacing(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	for i := range out {
		out[i].RefFacing = NormalizeSigned(out[i].RefBearing - out[i].HdgAvg)
	}
	return out
}
