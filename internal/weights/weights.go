// Package weights builds spatial weight matrices linking areal units or
// point sites to their neighbors.
package weights

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"gonum.org/v1/gonum/mat"
)

// W is a spatial weights matrix in sparse neighbor-list form. Neighbors[i]
// and Weights[i] run in parallel.
type W struct {
	N            int
	Neighbors    [][]int
	Weights      [][]float64
	Standardized bool
}

// Scheme names a contiguity rule.
type Scheme string

const (
	Queen    Scheme = "queen"
	Rook     Scheme = "rook"
	KNN      Scheme = "knn"
	Distance Scheme = "distance"
)

// ParseScheme validates a weights scheme name from configuration.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case Queen, Rook, KNN, Distance:
		return Scheme(s), nil
	default:
		return "", eris.Errorf("weights: unknown weights scheme %q", s)
	}
}

// Contiguity links polygons that touch. Queen contiguity needs one shared
// boundary vertex, rook needs a shared edge. Coordinates are snapped to a
// fixed precision before comparison so that cells built independently still
// match along their common boundary.
func Contiguity(polys []*geom.Polygon, scheme Scheme) (*W, error) {
	n := len(polys)
	if n < 2 {
		return nil, eris.Errorf("weights: need at least 2 polygons, got %d", n)
	}

	shared := make([]map[int]int, n) // shared[i][j] = number of common vertices
	for i := range shared {
		shared[i] = make(map[int]int)
	}

	vertexOwners := make(map[string][]int)
	for i, p := range polys {
		seen := make(map[string]bool)
		flat := p.FlatCoords()
		stride := p.Stride()
		for c := 0; c+1 < len(flat); c += stride {
			key := vertexKey(flat[c], flat[c+1])
			if seen[key] {
				continue
			}
			seen[key] = true
			for _, j := range vertexOwners[key] {
				shared[i][j]++
				shared[j][i]++
			}
			vertexOwners[key] = append(vertexOwners[key], i)
		}
	}

	need := 1
	if scheme == Rook {
		need = 2
	}
	w := &W{N: n, Neighbors: make([][]int, n), Weights: make([][]float64, n)}
	for i := range polys {
		var nb []int
		for j, count := range shared[i] {
			if count >= need {
				nb = append(nb, j)
			}
		}
		sort.Ints(nb)
		w.Neighbors[i] = nb
		w.Weights[i] = ones(len(nb))
	}
	return w, nil
}

func vertexKey(x, y float64) string {
	return fmt.Sprintf("%.9e:%.9e", x, y)
}

// KNearest links every site to its k nearest other sites. The result is
// asymmetric in general.
func KNearest(sites []geom.Coord, k int) (*W, error) {
	n := len(sites)
	if k <= 0 || k >= n {
		return nil, eris.Errorf("weights: k must be in [1, %d), got %d", n, k)
	}

	w := &W{N: n, Neighbors: make([][]int, n), Weights: make([][]float64, n)}
	for i := range sites {
		type cand struct {
			idx  int
			dist float64
		}
		cands := make([]cand, 0, n-1)
		for j := range sites {
			if i == j {
				continue
			}
			cands = append(cands, cand{idx: j, dist: dist2(sites[i], sites[j])})
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
		nb := make([]int, k)
		for m := 0; m < k; m++ {
			nb[m] = cands[m].idx
		}
		sort.Ints(nb)
		w.Neighbors[i] = nb
		w.Weights[i] = ones(k)
	}
	return w, nil
}

// DistanceBand links sites within the given distance of one another.
func DistanceBand(sites []geom.Coord, threshold float64) (*W, error) {
	n := len(sites)
	if n < 2 {
		return nil, eris.Errorf("weights: need at least 2 sites, got %d", n)
	}
	if threshold <= 0 {
		return nil, eris.Errorf("weights: invalid distance threshold %g", threshold)
	}

	t2 := threshold * threshold
	w := &W{N: n, Neighbors: make([][]int, n), Weights: make([][]float64, n)}
	for i := range sites {
		var nb []int
		for j := range sites {
			if i != j && dist2(sites[i], sites[j]) <= t2 {
				nb = append(nb, j)
			}
		}
		w.Neighbors[i] = nb
		w.Weights[i] = ones(len(nb))
	}
	return w, nil
}

func dist2(a, b geom.Coord) float64 {
	dx := a.X() - b.X()
	dy := a.Y() - b.Y()
	return dx*dx + dy*dy
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

// RowStandardize returns a copy of w with every row scaled to sum to one.
// Units with no neighbors make row standardization meaningless, so islands
// are an error.
func (w *W) RowStandardize() (*W, error) {
	out := &W{
		N:            w.N,
		Neighbors:    make([][]int, w.N),
		Weights:      make([][]float64, w.N),
		Standardized: true,
	}
	for i := range w.Neighbors {
		if len(w.Neighbors[i]) == 0 {
			return nil, eris.Errorf("weights: unit %d has no neighbors", i)
		}
		sum := 0.0
		for _, v := range w.Weights[i] {
			sum += v
		}
		out.Neighbors[i] = append([]int(nil), w.Neighbors[i]...)
		row := make([]float64, len(w.Weights[i]))
		for j, v := range w.Weights[i] {
			row[j] = v / sum
		}
		out.Weights[i] = row
	}
	return out, nil
}

// Symmetrize returns the union of w and its transpose, keeping the larger
// of the two directed weights for each pair. K-nearest and distance-band
// structures are asymmetric in general, and the spatial-error likelihood
// needs a matrix with a real spectrum.
func (w *W) Symmetrize() *W {
	out := &W{
		N:         w.N,
		Neighbors: make([][]int, w.N),
		Weights:   make([][]float64, w.N),
	}
	for i, nb := range w.Neighbors {
		for m, j := range nb {
			v := w.Weights[i][m]
			if back := w.at(j, i); back > v {
				v = back
			}
			out.Neighbors[i] = append(out.Neighbors[i], j)
			out.Weights[i] = append(out.Weights[i], v)
			if w.at(j, i) == 0 {
				out.Neighbors[j] = append(out.Neighbors[j], i)
				out.Weights[j] = append(out.Weights[j], v)
			}
		}
	}
	return out
}

// Lag computes the spatial lag of x, the weighted sum of each unit's
// neighbor values.
func (w *W) Lag(x []float64) ([]float64, error) {
	if len(x) != w.N {
		return nil, eris.Errorf("weights: expected %d values, got %d", w.N, len(x))
	}
	out := make([]float64, w.N)
	for i, nb := range w.Neighbors {
		for m, j := range nb {
			out[i] += w.Weights[i][m] * x[j]
		}
	}
	return out, nil
}

// S0 returns the sum of all weights.
func (w *W) S0() float64 {
	s := 0.0
	for _, row := range w.Weights {
		for _, v := range row {
			s += v
		}
	}
	return s
}

// S1 returns (1/2) * sum over all ordered pairs of (w_ij + w_ji)^2.
// Asymmetric structures store some pairs in one direction only, so a pair
// whose reverse weight is zero still counts for both ordered directions.
func (w *W) S1() float64 {
	s := 0.0
	for i, nb := range w.Neighbors {
		for m, j := range nb {
			back := w.at(j, i)
			v := w.Weights[i][m] + back
			if back == 0 {
				s += 2 * v * v
			} else {
				s += v * v
			}
		}
	}
	return s / 2
}

// S2 returns the sum of squared combined row and column sums.
func (w *W) S2() float64 {
	rowSums := make([]float64, w.N)
	colSums := make([]float64, w.N)
	for i, nb := range w.Neighbors {
		for m, j := range nb {
			rowSums[i] += w.Weights[i][m]
			colSums[j] += w.Weights[i][m]
		}
	}
	s := 0.0
	for i := 0; i < w.N; i++ {
		v := rowSums[i] + colSums[i]
		s += v * v
	}
	return s
}

func (w *W) at(i, j int) float64 {
	for m, nb := range w.Neighbors[i] {
		if nb == j {
			return w.Weights[i][m]
		}
	}
	return 0
}

// Dense materializes the weights as a gonum matrix.
func (w *W) Dense() *mat.Dense {
	d := mat.NewDense(w.N, w.N, nil)
	for i, nb := range w.Neighbors {
		for m, j := range nb {
			d.Set(i, j, w.Weights[i][m])
		}
	}
	return d
}

// Connectivity summarizes the neighbor structure for logging.
func (w *W) Connectivity() (min, max int, mean float64) {
	min = math.MaxInt
	for _, nb := range w.Neighbors {
		if len(nb) < min {
			min = len(nb)
		}
		if len(nb) > max {
			max = len(nb)
		}
		mean += float64(len(nb))
	}
	return min, max, mean / float64(w.N)
}
