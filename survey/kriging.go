package survey

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// ErrNoSamples is returned when kriging is asked to fit an empty field
var ErrNoSamples = errors.New("no samples to interpolate")

// variogramLags is the number of lag classes in the experimental variogram
const variogramLags = 6

// Kriging is an ordinary kriging estimator fitted to scattered samples.
// The system is solved once in dual form, so each estimate is a dot product
// of the point's variogram vector with the stored weights.
type Kriging struct {
	Variogram Variogram

	xs, ys  []float64
	weights *mat.VecDense // n sample weights followed by the Lagrange multiplier
}

// NewKriging fits an exponential variogram to the samples and solves the
// ordinary kriging system. Samples sharing a position are merged into their
// mean so the system stays non-singular.
func NewKriging(positions []orb.Point, values []float64) (*Kriging, error) {
	if len(positions) != len(values) {
		return nil, fmt.Errorf("kriging: %d positions for %d values", len(positions), len(values))
	}
	xs, ys, zs := mergeSamples(positions, values)
	if len(zs) == 0 {
		return nil, ErrNoSamples
	}

	k := &Kriging{
		Variogram: FitVariogram(xs, ys, zs, variogramLags),
		xs:        xs,
		ys:        ys,
	}

	n := len(zs)
	a := mat.NewDense(n+1, n+1, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			g := k.Variogram.Gamma(math.Hypot(xs[i]-xs[j], ys[i]-ys[j]))
			a.Set(i, j, g)
			a.Set(j, i, g)
		}
		a.Set(i, n, 1)
		a.Set(n, i, 1)
	}

	rhs := mat.NewVecDense(n+1, nil)
	for i, z := range zs {
		rhs.SetVec(i, z)
	}

	k.weights = mat.NewVecDense(n+1, nil)
	if err := k.weights.SolveVec(a, rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("kriging: solve system: %w", err)
		}
		// an ill-conditioned system still carries a solution
	}
	return k, nil
}

// Estimate returns the kriged value at p
func (k *Kriging) Estimate(p orb.Point) float64 {
	n := len(k.xs)
	var est float64
	for i := 0; i < n; i++ {
		est += k.weights.AtVec(i) * k.Variogram.Gamma(math.Hypot(p[0]-k.xs[i], p[1]-k.ys[i]))
	}
	return est + k.weights.AtVec(n)
}

// mergeSamples drops samples with a NaN coordinate or value and averages
// samples that share a position. Order of first occurrence is kept.
func mergeSamples(positions []orb.Point, values []float64) (xs, ys, zs []float64) {
	index := make(map[orb.Point]int, len(positions))
	var counts []int
	for i, p := range positions {
		v := values[i]
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsNaN(v) {
			continue
		}
		if j, ok := index[p]; ok {
			zs[j] += v
			counts[j]++
			continue
		}
		index[p] = len(zs)
		xs = append(xs, p[0])
		ys = append(ys, p[1])
		zs = append(zs, v)
		counts = append(counts, 1)
	}
	for j := range zs {
		zs[j] /= float64(counts[j])
	}
	return xs, ys, zs
}
