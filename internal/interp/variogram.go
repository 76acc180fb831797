package interp

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/terralab/geostat/internal/sample"
)

// Model selects the theoretical variogram shape.
type Model int

const (
	Spherical Model = iota
	Exponential
	Gaussian
)

// ParseModel validates a model name from configuration.
func ParseModel(s string) (Model, error) {
	switch s {
	case "spherical":
		return Spherical, nil
	case "exponential":
		return Exponential, nil
	case "gaussian":
		return Gaussian, nil
	default:
		return 0, eris.Errorf("interp: unknown variogram model %q", s)
	}
}

func (m Model) String() string {
	switch m {
	case Spherical:
		return "spherical"
	case Exponential:
		return "exponential"
	case Gaussian:
		return "gaussian"
	default:
		return "unknown"
	}
}

// Variogram is a fitted theoretical variogram.
type Variogram struct {
	Model  Model
	Nugget float64
	Sill   float64 // partial sill, excluding the nugget
	Range  float64
}

// Gamma evaluates the semivariance at lag distance h.
func (v Variogram) Gamma(h float64) float64 {
	if h <= 0 {
		return 0
	}
	gamma := v.Nugget
	switch v.Model {
	case Spherical:
		if h < v.Range {
			r := h / v.Range
			gamma += v.Sill * (1.5*r - 0.5*r*r*r)
		} else {
			gamma += v.Sill
		}
	case Exponential:
		gamma += v.Sill * (1 - math.Exp(-3*h/v.Range))
	case Gaussian:
		gamma += v.Sill * (1 - math.Exp(-3*h*h/(v.Range*v.Range)))
	}
	return gamma
}

// EmpiricalBin is one lag class of the empirical variogram.
type EmpiricalBin struct {
	Lag   float64 // mean pair distance in the bin
	Gamma float64 // mean semivariance in the bin
	Count int     // number of pairs
}

// Empirical computes the binned empirical semivariogram of the observations.
// Pairs beyond half the maximum pairwise distance are discarded, since bins
// out there hold too few pairs to be trustworthy.
func Empirical(obs []sample.Observation, bins int) ([]EmpiricalBin, error) {
	if len(obs) < 2 {
		return nil, eris.Errorf("interp: need at least 2 observations, got %d", len(obs))
	}
	if bins < 2 {
		return nil, eris.Errorf("interp: need at least 2 lag bins, got %d", bins)
	}

	maxDist := 0.0
	for i := range obs {
		for j := i + 1; j < len(obs); j++ {
			d := math.Hypot(obs[i].X-obs[j].X, obs[i].Y-obs[j].Y)
			if d > maxDist {
				maxDist = d
			}
		}
	}
	if maxDist == 0 {
		return nil, eris.New("interp: all observations at the same location")
	}

	cutoff := maxDist / 2
	width := cutoff / float64(bins)

	sumLag := make([]float64, bins)
	sumGamma := make([]float64, bins)
	counts := make([]int, bins)
	for i := range obs {
		for j := i + 1; j < len(obs); j++ {
			d := math.Hypot(obs[i].X-obs[j].X, obs[i].Y-obs[j].Y)
			if d == 0 || d > cutoff {
				continue
			}
			bin := int(d / width)
			if bin >= bins {
				bin = bins - 1
			}
			diff := obs[i].Value - obs[j].Value
			sumLag[bin] += d
			sumGamma[bin] += diff * diff / 2
			counts[bin]++
		}
	}

	out := make([]EmpiricalBin, 0, bins)
	for b := 0; b < bins; b++ {
		if counts[b] == 0 {
			continue
		}
		out = append(out, EmpiricalBin{
			Lag:   sumLag[b] / float64(counts[b]),
			Gamma: sumGamma[b] / float64(counts[b]),
			Count: counts[b],
		})
	}
	if len(out) < 2 {
		return nil, eris.New("interp: too few populated lag bins to fit a variogram")
	}
	return out, nil
}

// Fit fits the model to an empirical variogram by weighted least squares,
// weighting each bin by its pair count. The search runs over a coarse grid
// of nugget, sill and range candidates, then refines around the best cell.
func Fit(emp []EmpiricalBin, model Model) (Variogram, error) {
	if len(emp) < 2 {
		return Variogram{}, eris.New("interp: too few variogram bins to fit")
	}

	maxLag := 0.0
	maxGamma := 0.0
	for _, b := range emp {
		if b.Lag > maxLag {
			maxLag = b.Lag
		}
		if b.Gamma > maxGamma {
			maxGamma = b.Gamma
		}
	}
	if maxGamma == 0 {
		// A flat variogram means the field is constant; any range works.
		return Variogram{Model: model, Nugget: 0, Sill: 0, Range: maxLag}, nil
	}

	best := Variogram{Model: model}
	bestScore := math.Inf(1)
	for _, frac := range []float64{0, 0.1, 0.25, 0.5} {
		for _, sillFrac := range []float64{0.5, 0.75, 1.0, 1.25} {
			for _, rangeFrac := range []float64{0.1, 0.25, 0.5, 0.75, 1.0} {
				v := Variogram{
					Model:  model,
					Nugget: frac * maxGamma,
					Sill:   sillFrac * maxGamma,
					Range:  rangeFrac * maxLag,
				}
				if s := wlsScore(emp, v); s < bestScore {
					bestScore = s
					best = v
				}
			}
		}
	}

	// Refine around the coarse winner.
	for iter := 0; iter < 3; iter++ {
		step := 0.5 / float64(iter+1)
		for _, dn := range []float64{-step, 0, step} {
			for _, ds := range []float64{-step, 0, step} {
				for _, dr := range []float64{-step, 0, step} {
					v := Variogram{
						Model:  model,
						Nugget: math.Max(0, best.Nugget*(1+dn)),
						Sill:   math.Max(1e-12, best.Sill*(1+ds)),
						Range:  math.Max(maxLag*1e-3, best.Range*(1+dr)),
					}
					if s := wlsScore(emp, v); s < bestScore {
						bestScore = s
						best = v
					}
				}
			}
		}
	}

	if math.IsInf(bestScore, 1) {
		return Variogram{}, eris.New("interp: variogram fit failed")
	}
	return best, nil
}

func wlsScore(emp []EmpiricalBin, v Variogram) float64 {
	score := 0.0
	for _, b := range emp {
		r := b.Gamma - v.Gamma(b.Lag)
		score += float64(b.Count) * r * r
	}
	return score
}
