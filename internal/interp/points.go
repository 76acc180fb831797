// Package interp estimates continuous surfaces from scattered observations
// using inverse distance weighting and ordinary kriging.
package interp

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/terralab/geostat/internal/sample"
)

// site is one observation in the KD-tree, keeping its index so neighbor
// lookups recover the value without a linear scan.
type site struct {
	X, Y float64
	Idx  int
}

// Compare implements the kdtree.Comparable interface.
func (p site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree.
func (p site) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points.
func (p site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// sites is a collection of site that satisfies kdtree.Interface.
type sites []site

func (p sites) Index(i int) kdtree.Comparable         { return p[i] }
func (p sites) Len() int                              { return len(p) }
func (p sites) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p sites) Pivot(d kdtree.Dim) int {
	return sitePlane{sites: p, Dim: d}.Pivot()
}

// sitePlane wraps sites with a dimension for pivoting.
type sitePlane struct {
	sites
	kdtree.Dim
}

func (p sitePlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p sitePlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.sites[i].X < p.sites[j].X
	case 1:
		return p.sites[i].Y < p.sites[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p sitePlane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}

func (p sitePlane) Swap(i, j int) {
	p.sites[i], p.sites[j] = p.sites[j], p.sites[i]
}

// neighborIndex answers k-nearest queries over a fixed set of observations.
type neighborIndex struct {
	tree *kdtree.Tree
	n    int
}

func newNeighborIndex(obs []sample.Observation) *neighborIndex {
	pts := make(sites, len(obs))
	for i, o := range obs {
		pts[i] = site{X: o.X, Y: o.Y, Idx: i}
	}
	return &neighborIndex{
		tree: kdtree.New(pts, false),
		n:    len(obs),
	}
}

// nearest returns the indices of the k observations closest to (x, y),
// ordered by increasing distance.
func (ix *neighborIndex) nearest(x, y float64, k int) []int {
	if k > ix.n {
		k = ix.n
	}
	keeper := kdtree.NewNKeeper(k)
	ix.tree.NearestSet(keeper, site{X: x, Y: y})

	type hit struct {
		idx  int
		dist float64
	}
	hits := make([]hit, 0, k)
	for _, item := range keeper.Heap {
		// Skip the sentinel value.
		if item.Comparable == nil {
			continue
		}
		hits = append(hits, hit{idx: item.Comparable.(site).Idx, dist: item.Dist})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.idx
	}
	return out
}
