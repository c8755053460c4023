package survey

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// GridConfig controls the interpolation lattice
type GridConfig struct {
	// CellSize is the node spacing in survey units
	CellSize float64 `yaml:"cellSize" json:"cellSize"`
	// Margin expands the sample bounding box on every side
	Margin float64 `yaml:"margin" json:"margin"`
	// Decimals rounds every estimate
	Decimals int `yaml:"decimals" json:"decimals"`
	// Geographic reprojects node coordinates to lon/lat before export
	Geographic bool `yaml:"geographic" json:"geographic"`
}

// DefaultGridConfig returns the field processing defaults
func DefaultGridConfig() GridConfig {
	return GridConfig{CellSize: 0.25, Margin: 5, Decimals: 3, Geographic: true}
}

// Grid is a regular lattice stored row-major: node (r, c) lives at r*Cols+c.
// Row 0 is the minimum y.
type Grid struct {
	Rows, Cols int
	X, Y       []float64
	// ZFull is the kriged field before masking
	ZFull []float64
	// Z is ZFull with nodes outside the footprint set to NaN
	Z []float64
	// Geographic is true once X/Y hold lon/lat
	Geographic bool
	Variogram  Variogram
}

// Len is the number of nodes
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return g.Rows * g.Cols
}

// Empty is true when the grid has no node or every masked value is NaN
func (g *Grid) Empty() bool {
	if g.Len() == 0 {
		return true
	}
	for _, z := range g.Z {
		if !math.IsNaN(z) {
			return false
		}
	}
	return true
}

// Bounds returns the x/y extent of the nodes
func (g *Grid) Bounds() orb.Bound {
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for i := range g.X {
		b = b.Extend(orb.Point{g.X[i], g.Y[i]})
	}
	return b
}

// ZRange returns min and max of the masked values, NaN when empty
func (g *Grid) ZRange() (float64, float64) {
	lo, hi := math.NaN(), math.NaN()
	for _, z := range g.Z {
		lo = nanMin(lo, z)
		hi = nanMax(hi, z)
	}
	return lo, hi
}

// At returns the masked value at row r, column c
func (g *Grid) At(r, c int) float64 {
	return g.Z[r*g.Cols+c]
}

// Reproject returns a copy of the grid with EPSG:3857 node coordinates
// transformed to WGS84 lon/lat.
func (g *Grid) Reproject() *Grid {
	if g.Geographic {
		return g
	}
	out := *g
	out.X = make([]float64, len(g.X))
	out.Y = make([]float64, len(g.Y))
	for i := range g.X {
		ll := project.Mercator.ToWGS84(orb.Point{g.X[i], g.Y[i]})
		out.X[i], out.Y[i] = ll[0], ll[1]
	}
	out.Geographic = true
	return &out
}

// linspace returns n evenly spaced values from lo to hi inclusive
func linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[n-1] = hi
	return out
}

// Interpolate krigs the samples onto a lattice covering their bounding box
// plus the configured margin and masks it with the footprint. Samples with a
// NaN value are ignored; with none left it returns ErrNoSamples.
func Interpolate(positions []orb.Point, values []float64, fp *Footprint, cfg GridConfig) (*Grid, error) {
	k, err := NewKriging(positions, values)
	if err != nil {
		return nil, err
	}

	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for i := range k.xs {
		bound = bound.Extend(orb.Point{k.xs[i], k.ys[i]})
	}
	x0, x1 := bound.Min[0]-cfg.Margin, bound.Max[0]+cfg.Margin
	y0, y1 := bound.Min[1]-cfg.Margin, bound.Max[1]+cfg.Margin

	cols := int(math.Floor((x1 - x0) / cfg.CellSize))
	rows := int(math.Floor((y1 - y0) / cfg.CellSize))
	xs := linspace(x0, x1, cols)
	ys := linspace(y0, y1, rows)

	g := &Grid{
		Rows:      rows,
		Cols:      cols,
		X:         make([]float64, rows*cols),
		Y:         make([]float64, rows*cols),
		ZFull:     make([]float64, rows*cols),
		Z:         make([]float64, rows*cols),
		Variogram: k.Variogram,
	}
	for r, y := range ys {
		for c, x := range xs {
			i := r*cols + c
			p := orb.Point{x, y}
			z := round(k.Estimate(p), cfg.Decimals)
			g.X[i], g.Y[i] = x, y
			g.ZFull[i] = z
			if fp.Contains(p) {
				g.Z[i] = z
			} else {
				g.Z[i] = math.NaN()
			}
		}
	}
	return g, nil
}
