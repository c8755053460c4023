package survey

import "math"

// applyFacingPolarity is the per-point pass: k = -sign(cos(ref_facing)) and
// voltage_norm = round(voltage_raw, 3) * k.
func applyFacingPolarity(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	for i := range out {
		k := -sign(math.Cos(deg2rad(out[i].RefFacing)))
		out[i].VoltageK = k
		out[i].VoltageNorm = round(out[i].VoltageRaw, 3) * k
	}
	return out
}

// canonicalizePolarity is the whole-column pass: when the session median of
// voltage_norm is negative every sign is flipped once, so the dominant lobe
// comes out positive regardless of instrument orientation at start.
func canonicalizePolarity(points []Point) ([]Point, bool) {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.VoltageNorm
	}
	if !(median(values) < 0) {
		return points, false
	}

	out := make([]Point, len(points))
	copy(out, points)
	for i := range out {
		out[i].VoltageNorm = -out[i].VoltageNorm
		out[i].VoltageK = -out[i].VoltageK
	}
	return out, true
}

// NormalizeField runs both polarity passes in order. It reports whether the
// global flip was applied.
func NormalizeField(points []Point) ([]Point, bool) {
	return canonicalizePolarity(applyFacingPolarity(points))
}
