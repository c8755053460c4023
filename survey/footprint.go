package survey

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// FootprintConfig controls the surveyed-area polygon
type FootprintConfig struct {
	// HullRatio is the concave hull tightness, 0 (tight) to 1 (convex)
	HullRatio float64 `yaml:"hullRatio" json:"hullRatio"`
	// Buffer grows the hull outward, in survey units
	Buffer float64 `yaml:"buffer" json:"buffer"`
}

// DefaultFootprintConfig mirrors the field processing defaults
func DefaultFootprintConfig() FootprintConfig {
	return FootprintConfig{HullRatio: 0.2, Buffer: 1}
}

// Footprint is the buffered concave hull of the surveyed positions.
// Hull holds the counter-clockwise hull vertices, not closed. With fewer than
// three distinct positions it degenerates to those positions, and containment
// becomes "within Buffer of a vertex or segment".
type Footprint struct {
	Hull   []orb.Point
	Buffer float64
	Start  time.Time
	End    time.Time
}

// NewFootprint builds the footprint over the given positions
func NewFootprint(positions []orb.Point, cfg FootprintConfig) *Footprint {
	return &Footprint{
		Hull:   concaveHull(positions, cfg.HullRatio),
		Buffer: cfg.Buffer,
	}
}

// Empty is true when no position contributed to the footprint
func (f *Footprint) Empty() bool {
	return f == nil || len(f.Hull) == 0
}

// Ring returns the closed hull ring, or nil below three vertices
func (f *Footprint) Ring() orb.Ring {
	if f.Empty() || len(f.Hull) < 3 {
		return nil
	}
	r := make(orb.Ring, 0, len(f.Hull)+1)
	r = append(r, f.Hull...)
	return append(r, f.Hull[0])
}

// Contains reports whether p lies strictly inside the buffered footprint
func (f *Footprint) Contains(p orb.Point) bool {
	if f.Empty() || math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		return false
	}
	if ring := f.Ring(); ring != nil && planar.RingContains(ring, p) {
		return true
	}
	return f.boundaryDistance(p) < f.Buffer
}

// boundaryDistance is the distance from p to the hull outline
func (f *Footprint) boundaryDistance(p orb.Point) float64 {
	if len(f.Hull) == 1 {
		return planar.Distance(f.Hull[0], p)
	}
	best := math.Inf(1)
	n := len(f.Hull)
	edges := n
	if n == 2 {
		edges = 1
	}
	for i := 0; i < edges; i++ {
		d := planar.DistanceFromSegment(f.Hull[i], f.Hull[(i+1)%n], p)
		if d < best {
			best = d
		}
	}
	return best
}

// Centroid is the area centroid of the buffered outline, or the mean of the
// hull vertices when the outline has no area. NaN when empty.
func (f *Footprint) Centroid() orb.Point {
	if f.Empty() {
		return orb.Point{math.NaN(), math.NaN()}
	}
	if ring := f.Outline(); len(ring) > 3 {
		c, area := planar.CentroidArea(orb.Polygon{ring})
		if area != 0 {
			return c
		}
	}
	var sx, sy float64
	for _, p := range f.Hull {
		sx += p[0]
		sy += p[1]
	}
	n := float64(len(f.Hull))
	return orb.Point{sx / n, sy / n}
}

// Outline approximates the buffered boundary as a closed ring: round joins at
// convex vertices, mitre joins at reflex ones.
func (f *Footprint) Outline() orb.Ring {
	if f.Empty() {
		return nil
	}
	const step = math.Pi / 8
	buf := f.Buffer

	arc := func(ring orb.Ring, c orb.Point, from, sweep float64) orb.Ring {
		steps := int(math.Ceil(math.Abs(sweep) / step))
		if steps < 1 {
			steps = 1
		}
		for s := 0; s <= steps; s++ {
			a := from + sweep*float64(s)/float64(steps)
			ring = append(ring, orb.Point{c[0] + buf*math.Cos(a), c[1] + buf*math.Sin(a)})
		}
		return ring
	}

	var ring orb.Ring
	switch len(f.Hull) {
	case 1:
		ring = arc(ring, f.Hull[0], 0, 2*math.Pi)
	case 2:
		a, b := f.Hull[0], f.Hull[1]
		dir := math.Atan2(b[1]-a[1], b[0]-a[0])
		ring = arc(ring, b, dir-math.Pi/2, math.Pi)
		ring = arc(ring, a, dir+math.Pi/2, math.Pi)
	default:
		n := len(f.Hull)
		for i := 0; i < n; i++ {
			prev := f.Hull[(i-1+n)%n]
			v := f.Hull[i]
			next := f.Hull[(i+1)%n]
			n1 := outwardNormal(prev, v)
			n2 := outwardNormal(v, next)
			turn := cross(prev, v, next)
			if turn > 0 {
				from := math.Atan2(n1[1], n1[0])
				sweep := math.Atan2(n1[0]*n2[1]-n1[1]*n2[0], n1[0]*n2[0]+n1[1]*n2[1])
				ring = arc(ring, v, from, sweep)
				continue
			}
			denom := 1 + n1[0]*n2[0] + n1[1]*n2[1]
			if denom < 1e-6 {
				ring = append(ring, orb.Point{v[0] + buf*n1[0], v[1] + buf*n1[1]})
				continue
			}
			ring = append(ring, orb.Point{
				v[0] + buf*(n1[0]+n2[0])/denom,
				v[1] + buf*(n1[1]+n2[1])/denom,
			})
		}
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// outwardNormal is the unit normal to the right of a->b, which points out of
// a counter-clockwise ring.
func outwardNormal(a, b orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l := math.Hypot(dx, dy)
	if l == 0 {
		return orb.Point{}
	}
	return orb.Point{dy / l, -dx / l}
}
