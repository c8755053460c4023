package survey

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// cross returns the cross product of vectors OA and OB
func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// uniquePoints drops NaN and repeated positions, keeping first occurrence
func uniquePoints(points []orb.Point) []orb.Point {
	seen := make(map[orb.Point]bool, len(points))
	out := make([]orb.Point, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// convexHull computes the convex hull of a set of 2D points using
// Andrew's monotone chain algorithm. Returns points in counter-clockwise order.
func convexHull(points []orb.Point) []orb.Point {
	if len(points) < 3 {
		result := make([]orb.Point, len(points))
		copy(result, points)
		return result
	}

	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	n := len(sorted)
	hull := make([]orb.Point, 0, 2*n)

	// Lower hull
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// Upper hull
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}

// concaveHull shrinks the convex hull onto the point set by repeatedly
// "digging" edges longer than a threshold towards the nearest interior point.
// ratio in [0,1] places the threshold between the shortest nearest-neighbour
// spacing (0, tightest) and the longest convex hull edge (1, convex hull).
// The result is counter-clockwise and not closed.
func concaveHull(points []orb.Point, ratio float64) []orb.Point {
	pts := uniquePoints(points)
	hull := convexHull(pts)
	if len(hull) < 3 || ratio >= 1 {
		return hull
	}

	minSpacing := math.Inf(1)
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			if d := planar.Distance(pts[i], pts[j]); d < minSpacing {
				minSpacing = d
			}
		}
	}
	maxEdge := 0.0
	for i := range hull {
		if d := planar.Distance(hull[i], hull[(i+1)%len(hull)]); d > maxEdge {
			maxEdge = d
		}
	}
	threshold := minSpacing + math.Max(ratio, 0)*(maxEdge-minSpacing)

	onHull := make(map[orb.Point]bool, len(hull))
	for _, p := range hull {
		onHull[p] = true
	}

	for changed := true; changed; {
		changed = false
		for i := 0; i < len(hull); i++ {
			a := hull[i]
			b := hull[(i+1)%len(hull)]
			edge := planar.Distance(a, b)
			if edge <= threshold {
				continue
			}
			if p, ok := digCandidate(a, b, edge, hull, i, pts, onHull); ok {
				hull = append(hull[:i+1], append([]orb.Point{p}, hull[i+1:]...)...)
				onHull[p] = true
				changed = true
			}
		}
	}
	return hull
}

// digCandidate picks the interior point that can replace edge a->b (hull[i]
// to hull[i+1]) with the shortest pair of new edges, without crossing the
// hull or leaving another point outside.
func digCandidate(a, b orb.Point, edge float64, hull []orb.Point, i int, pts []orb.Point, onHull map[orb.Point]bool) (orb.Point, bool) {
	type candidate struct {
		p     orb.Point
		score float64
	}
	var cands []candidate
	abx, aby := b[0]-a[0], b[1]-a[1]
	for _, p := range pts {
		if onHull[p] {
			continue
		}
		t := ((p[0]-a[0])*abx + (p[1]-a[1])*aby) / (edge * edge)
		if t <= 0 || t >= 1 || cross(a, b, p) <= 0 {
			continue
		}
		score := math.Max(planar.Distance(a, p), planar.Distance(b, p))
		if score >= edge {
			continue
		}
		cands = append(cands, candidate{p, score})
	}
	sort.Slice(cands, func(x, y int) bool { return cands[x].score < cands[y].score })

	for _, c := range cands {
		if crossesHull(a, c.p, hull, i) || crossesHull(c.p, b, hull, i) {
			continue
		}
		if anyInTriangle(a, c.p, b, pts, onHull) {
			continue
		}
		return c.p, true
	}
	return orb.Point{}, false
}

// crossesHull reports whether segment p-q properly intersects any hull edge
// other than the one being replaced (index skip).
func crossesHull(p, q orb.Point, hull []orb.Point, skip int) bool {
	for j := range hull {
		if j == skip {
			continue
		}
		c := hull[j]
		d := hull[(j+1)%len(hull)]
		if segmentsCross(p, q, c, d) {
			return true
		}
	}
	return false
}

// segmentsCross is true for a proper intersection (shared endpoints excluded)
func segmentsCross(p1, p2, q1, q2 orb.Point) bool {
	if p1 == q1 || p1 == q2 || p2 == q1 || p2 == q2 {
		return false
	}
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// anyInTriangle reports whether a non-hull point other than the corners lies
// inside or on triangle a, p, b.
func anyInTriangle(a, p, b orb.Point, pts []orb.Point, onHull map[orb.Point]bool) bool {
	for _, q := range pts {
		if q == p || onHull[q] {
			continue
		}
		d1 := cross(a, p, q)
		d2 := cross(p, b, q)
		d3 := cross(b, a, q)
		hasNeg := d1 < 0 || d2 < 0 || d3 < 0
		hasPos := d1 > 0 || d2 > 0 || d3 > 0
		if !(hasNeg && hasPos) {
			return true
		}
	}
	return false
}
