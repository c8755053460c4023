package survey

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// BuildLines groups segmented points by line index. Members keep walking
// order. points is the full session slice; only points with a line index take
// part. Single-member lines get a duplicated vertex so the geometry exists.
func BuildLines(sessionID string, points []Point) []Line {
	byIndex := make(map[int][]int)
	for i, p := range points {
		if p.Line == NoLine {
			continue
		}
		byIndex[p.Line] = append(byIndex[p.Line], i)
	}

	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	lines := make([]Line, 0, len(indices))
	for _, idx := range indices {
		members := byIndex[idx]
		geom := make(orb.LineString, 0, len(members)+1)
		hdgs := make([]float64, 0, len(members))
		comps := make([]float64, 0, len(members))
		for _, m := range members {
			geom = append(geom, points[m].Position())
			hdgs = append(hdgs, points[m].HdgFwd)
			comps = append(comps, points[m].Compass)
		}
		if len(geom) < 2 {
			geom = append(geom, geom[0])
		}

		lines = append(lines, Line{
			Index:    idx,
			ID:       lineID(sessionID, idx),
			Members:  members,
			Geometry: geom,
			Heading:  Normalize360(CircularMedian(hdgs)),
			Compass:  Normalize360(CircularMedian(comps)),
			Length:   round(planar.Length(geom), 2),
			Angle:    lineAngle(geom),
		})
	}
	return lines
}

// lineAngle is the end-to-end bearing of a line folded into [0, 180).
// Zero-length lines have no orientation.
func lineAngle(ls orb.LineString) float64 {
	if len(ls) == 0 {
		return math.NaN()
	}
	first, last := ls[0], ls[len(ls)-1]
	b := Bearing(last[0]-first[0], last[1]-first[1])
	if math.IsNaN(b) {
		return b
	}
	return math.Mod(math.Mod(b, 180)+180, 180)
}

// MergeLineData copies each line's aggregates back onto its member points and
// derives the travel-vs-compass deviation. Returns a new slice.
func MergeLineData(points []Point, lines []Line) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	for _, l := range lines {
		for _, m := range l.Members {
			p := &out[m]
			p.LineID = l.ID
			p.LineHeading = l.Heading
			p.LineCompass = l.Compass
			p.LineLength = l.Length
			p.LineHeadingDiff = math.Abs(NormalizeSigned(l.Heading - l.Compass))
		}
	}
	return out
}
