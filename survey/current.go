package survey

import (
	"math"

	"github.com/paulmach/orb"
)

// CurrentPath draws the electrode layout as spokes from the footprint
// centroid: for the first minus point and the first plus point, in that
// order, centroid -> electrode -> centroid. Nil without electrodes or without
// a footprint.
func CurrentPath(points []Point, fp *Footprint) orb.LineString {
	c := fp.Centroid()
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return nil
	}

	var path orb.LineString
	for _, attr := range []Attribute{AttrMinus, AttrPlus} {
		for _, p := range points {
			if p.Attribute != attr {
				continue
			}
			path = append(path, c, p.Position(), c)
			break
		}
	}
	return path
}
