package survey

import (
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Variogram is an exponential semivariogram model:
// gamma(h) = PartialSill*(1-exp(-3h/Range)) + Nugget for h > 0, gamma(0) = 0.
// Pinning gamma(0) to zero is what makes the kriging estimator reproduce the
// sample values exactly at sample locations.
type Variogram struct {
	PartialSill float64 `json:"psill"`
	Range       float64 `json:"range"`
	Nugget      float64 `json:"nugget"`
}

// Gamma evaluates the model at lag h
func (v Variogram) Gamma(h float64) float64 {
	if h == 0 {
		return 0
	}
	return v.model(h)
}

func (v Variogram) model(h float64) float64 {
	r := v.Range
	if r <= 0 {
		r = math.SmallestNonzeroFloat64
	}
	return v.PartialSill*(1-math.Exp(-h/(r/3))) + v.Nugget
}

// experimentalVariogram bins half squared differences of all sample pairs
// into nlags equal-width lag classes. Empty classes are dropped.
func experimentalVariogram(xs, ys, zs []float64, nlags int) (lags, semis []float64) {
	n := len(xs)
	var dists, diffs []float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dists = append(dists, math.Hypot(xs[i]-xs[j], ys[i]-ys[j]))
			d := zs[i] - zs[j]
			diffs = append(diffs, 0.5*d*d)
		}
	}
	if len(dists) == 0 || nlags < 1 {
		return nil, nil
	}

	lo, hi := floats.Min(dists), floats.Max(dists)
	width := (hi - lo) / float64(nlags)
	for b := 0; b < nlags; b++ {
		from := lo + float64(b)*width
		to := from + width
		var sumD, sumS float64
		var count int
		for k, d := range dists {
			inBin := d >= from && d < to
			if b == nlags-1 {
				inBin = d >= from && d <= to
			}
			if inBin {
				sumD += d
				sumS += diffs[k]
				count++
			}
		}
		if count > 0 {
			lags = append(lags, sumD/float64(count))
			semis = append(semis, sumS/float64(count))
		}
	}
	return lags, semis
}

// FitVariogram fits the exponential model to the experimental variogram of
// the samples with a Nelder-Mead search. Parameters are kept in
// [0, 10*max(semi)] x [0, max(lag)] x [0, max(semi)]. When the search fails
// the initial guess is returned.
func FitVariogram(xs, ys, zs []float64, nlags int) Variogram {
	lags, semis := experimentalVariogram(xs, ys, zs, nlags)
	if len(lags) == 0 {
		return Variogram{PartialSill: 1, Range: 1}
	}

	maxSemi := floats.Max(semis)
	minSemi := floats.Min(semis)
	maxLag := floats.Max(lags)

	initial := Variogram{
		PartialSill: maxSemi - minSemi,
		Range:       0.25 * maxLag,
		Nugget:      minSemi,
	}
	if len(lags) < 3 || maxLag == 0 {
		return initial
	}

	clampParams := func(x []float64) Variogram {
		return Variogram{
			PartialSill: clamp(x[0], 0, 10*maxSemi),
			Range:       clamp(x[1], 0, maxLag),
			Nugget:      clamp(x[2], 0, maxSemi),
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			v := clampParams(x)
			var loss float64
			for i, h := range lags {
				r := v.model(h) - semis[i]
				// soft L1 keeps a single wild lag class from dominating
				loss += 2 * (math.Sqrt(1+r*r) - 1)
			}
			return loss
		},
	}

	result, err := optimize.Minimize(problem, []float64{initial.PartialSill, initial.Range, initial.Nugget}, nil, &optimize.NelderMead{})
	if err != nil || result == nil {
		log.Printf("variogram fit did not converge, using initial guess: %v", err)
		return initial
	}
	return clampParams(result.X)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
