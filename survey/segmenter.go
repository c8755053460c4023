package survey

import (
	"fmt"
	"math"
)

// SegmentConfig holds the line-break calibration constants
type SegmentConfig struct {
	// SplitScore is the threshold on d_dst * d_hdg^2 above which a point breaks a line
	SplitScore float64 `yaml:"splitScore" json:"splitScore"`
	// MaxStep is the step distance above which a point always breaks a line
	MaxStep float64 `yaml:"maxStep" json:"maxStep"`
	// MinPoints is the number of measurement points required to segment at all
	MinPoints int `yaml:"minPoints" json:"minPoints"`
}

// DefaultSegmentConfig returns the field-calibrated thresholds
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		SplitScore: 1000,
		MaxStep:    4,
		MinPoints:  3,
	}
}

// stepHeadings computes the forward bearing and distance from each position
// to the next one. The last entry is NaN.
func stepHeadings(xs, ys []float64) (hdg, dst []float64) {
	n := len(xs)
	hdg = make([]float64, n)
	dst = make([]float64, n)
	for i := 0; i < n; i++ {
		if i == n-1 {
			hdg[i] = math.NaN()
			dst[i] = math.NaN()
			continue
		}
		dx := xs[i+1] - xs[i]
		dy := ys[i+1] - ys[i]
		hdg[i] = Normalize360(Bearing(dx, dy))
		dst[i] = round(math.Hypot(dx, dy), 2)
	}
	return hdg, dst
}

// backHeadings walks the sequence in reverse and returns, for each position,
// the direction of travel on arrival and the distance from its predecessor.
// The first entry is NaN.
func backHeadings(xs, ys []float64) (hdg, dst []float64) {
	n := len(xs)
	hdg = make([]float64, n)
	dst = make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			hdg[i] = math.NaN()
			dst[i] = math.NaN()
			continue
		}
		// bearing from i back to i-1, then flipped to face the travel direction
		dx := xs[i-1] - xs[i]
		dy := ys[i-1] - ys[i]
		hdg[i] = Normalize360(Bearing(dx, dy) + 180)
		dst[i] = round(math.Hypot(dx, dy), 2)
	}
	return hdg, dst
}

// headingDelta is |a-b| folded into [0, 180]
func headingDelta(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = math.Abs(d - 360)
	}
	return d
}

// dedupeSplits clears a flag that repeats the raw flag of its predecessor,
// so two consecutive break candidates only open one new line.
func dedupeSplits(raw []int) []int {
	out := make([]int, len(raw))
	prev := -1
	for i, cur := range raw {
		if i > 0 && cur == prev {
			out[i] = 0
		} else {
			out[i] = cur
		}
		prev = cur
	}
	return out
}

// assignLines numbers points by run: each point takes the current counter and
// the counter advances right after any flagged point.
func assignLines(splits []int) []int {
	lines := make([]int, len(splits))
	counter := 0
	for i, s := range splits {
		lines[i] = counter
		if s == 1 {
			counter++
		}
	}
	return lines
}

// Segment annotates the ordered measurement points with headings, distances
// and split flags, and assigns line indices. The input slice is not modified.
// Fewer than cfg.MinPoints points are returned unsegmented.
func Segment(points []Point, cfg SegmentConfig) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	if len(out) < cfg.MinPoints {
		return out
	}

	xs := make([]float64, len(out))
	ys := make([]float64, len(out))
	for i, p := range out {
		xs[i] = p.X
		ys[i] = p.Y
	}

	hdgFwd, dstFwd := stepHeadings(xs, ys)
	hdgBck, dstBck := backHeadings(xs, ys)

	raw := make([]int, len(out))
	for i := range out {
		p := &out[i]
		p.HdgFwd, p.DstFwd = hdgFwd[i], dstFwd[i]
		p.HdgBck, p.DstBck = hdgBck[i], dstBck[i]
		p.DHdg = headingDelta(p.HdgFwd, p.HdgBck)
		p.DDst = nanMin(p.DstFwd, p.DstBck)
		p.SplitK = p.DDst * p.DHdg * p.DHdg

		if p.SplitK > cfg.SplitScore || nanMax(p.DstFwd, p.DstBck) > cfg.MaxStep {
			raw[i] = 1
		}
	}

	splits := dedupeSplits(raw)
	lines := assignLines(splits)
	for i := range out {
		out[i].Split = splits[i]
		out[i].Line = lines[i]
	}
	return out
}

// lineID formats the persistent identifier of a line within a session
func lineID(sessionID string, index int) string {
	return fmt.Sprintf("%s_%03d", sessionID, index)
}
