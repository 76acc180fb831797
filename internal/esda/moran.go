// Package esda implements exploratory spatial data analysis statistics:
// global and local Moran's I and Geary's C, with analytic and permutation
// inference.
package esda

import (
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/terralab/geostat/internal/weights"
)

// MoranResult holds the global Moran's I statistic and its inference under
// the randomization assumption.
type MoranResult struct {
	I        float64 `json:"i"`
	Expected float64 `json:"expected"`
	Variance float64 `json:"variance"`
	Z        float64 `json:"z"`
	PValue   float64 `json:"p_value"` // two-sided
}

// MoranI computes global Moran's I of x under the spatial weights w, with
// moments under the randomization null.
func MoranI(x []float64, w *weights.W) (*MoranResult, error) {
	n := len(x)
	if n != w.N {
		return nil, eris.Errorf("esda: %d values for %d spatial units", n, w.N)
	}
	if n < 4 {
		return nil, eris.Errorf("esda: need at least 4 units, got %d", n)
	}

	i, m2, z := moranStat(x, w)
	if m2 == 0 {
		return nil, eris.New("esda: attribute is constant")
	}

	nf := float64(n)
	s0 := w.S0()
	s1 := w.S1()
	s2 := w.S2()

	// Kurtosis term of the randomization variance.
	m4 := 0.0
	for _, zi := range z {
		m4 += zi * zi * zi * zi
	}
	m4 /= nf
	b2 := m4 / (m2 * m2)

	ei := -1 / (nf - 1)
	num := nf*((nf*nf-3*nf+3)*s1-nf*s2+3*s0*s0) -
		b2*((nf*nf-nf)*s1-2*nf*s2+6*s0*s0)
	den := (nf - 1) * (nf - 2) * (nf - 3) * s0 * s0
	vi := num/den - ei*ei
	if vi <= 0 {
		return nil, eris.New("esda: degenerate weights, zero variance")
	}

	zScore := (i - ei) / math.Sqrt(vi)
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	p := 2 * norm.Survival(math.Abs(zScore))

	return &MoranResult{I: i, Expected: ei, Variance: vi, Z: zScore, PValue: p}, nil
}

// moranStat returns Moran's I, the variance of x, and the centered values.
func moranStat(x []float64, w *weights.W) (float64, float64, []float64) {
	n := len(x)
	mean := stat.Mean(x, nil)
	z := make([]float64, n)
	m2 := 0.0
	for i, v := range x {
		z[i] = v - mean
		m2 += z[i] * z[i]
	}
	m2 /= float64(n)
	if m2 == 0 {
		return 0, 0, z
	}

	cross := 0.0
	for i, nb := range w.Neighbors {
		for m, j := range nb {
			cross += w.Weights[i][m] * z[i] * z[j]
		}
	}
	return cross / (w.S0() * m2), m2, z
}

// PermutationResult holds a permutation test of Moran's I.
type PermutationResult struct {
	I            float64   `json:"i"`
	PValue       float64   `json:"p_value"` // pseudo p, one-sided toward the observed sign
	Permutations int       `json:"permutations"`
	Reference    []float64 `json:"-"`
}

// MoranPermutation estimates the null distribution of Moran's I by
// reshuffling x. The same seed yields the same reference distribution.
func MoranPermutation(x []float64, w *weights.W, permutations int, seed uint64) (*PermutationResult, error) {
	if permutations < 99 {
		return nil, eris.Errorf("esda: need at least 99 permutations, got %d", permutations)
	}
	if len(x) != w.N {
		return nil, eris.Errorf("esda: %d values for %d spatial units", len(x), w.N)
	}

	observed, m2, _ := moranStat(x, w)
	if m2 == 0 {
		return nil, eris.New("esda: attribute is constant")
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	shuffled := append([]float64(nil), x...)
	ref := make([]float64, permutations)
	extreme := 0
	for p := 0; p < permutations; p++ {
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		ri, _, _ := moranStat(shuffled, w)
		ref[p] = ri
		if observed >= 0 && ri >= observed {
			extreme++
		}
		if observed < 0 && ri <= observed {
			extreme++
		}
	}

	return &PermutationResult{
		I:            observed,
		PValue:       float64(extreme+1) / float64(permutations+1),
		Permutations: permutations,
		Reference:    ref,
	}, nil
}

// GearyC computes Geary's contiguity ratio. Values below 1 indicate positive
// spatial autocorrelation.
func GearyC(x []float64, w *weights.W) (float64, error) {
	n := len(x)
	if n != w.N {
		return 0, eris.Errorf("esda: %d values for %d spatial units", n, w.N)
	}

	mean := stat.Mean(x, nil)
	ssq := 0.0
	for _, v := range x {
		d := v - mean
		ssq += d * d
	}
	if ssq == 0 {
		return 0, eris.New("esda: attribute is constant")
	}

	num := 0.0
	for i, nb := range w.Neighbors {
		for m, j := range nb {
			d := x[i] - x[j]
			num += w.Weights[i][m] * d * d
		}
	}
	return float64(n-1) * num / (2 * w.S0() * ssq), nil
}

// LocalMoran holds one unit's local Moran statistic.
type LocalMoran struct {
	I        float64 `csv:"i" json:"i"`
	Quadrant string  `csv:"quadrant" json:"quadrant"` // HH, LL, HL or LH
}

// LocalMoranI computes the local Moran statistic for every unit.
func LocalMoranI(x []float64, w *weights.W) ([]LocalMoran, error) {
	n := len(x)
	if n != w.N {
		return nil, eris.Errorf("esda: %d values for %d spatial units", n, w.N)
	}

	mean := stat.Mean(x, nil)
	z := make([]float64, n)
	m2 := 0.0
	for i, v := range x {
		z[i] = v - mean
		m2 += z[i] * z[i]
	}
	m2 /= float64(n)
	if m2 == 0 {
		return nil, eris.New("esda: attribute is constant")
	}

	lag, err := w.Lag(z)
	if err != nil {
		return nil, err
	}

	out := make([]LocalMoran, n)
	for i := range out {
		out[i] = LocalMoran{
			I:        z[i] * lag[i] / m2,
			Quadrant: quadrant(z[i], lag[i]),
		}
	}
	return out, nil
}

func quadrant(z, lag float64) string {
	switch {
	case z >= 0 && lag >= 0:
		return "HH"
	case z < 0 && lag < 0:
		return "LL"
	case z >= 0:
		return "HL"
	default:
		return "LH"
	}
}
