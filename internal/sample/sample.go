// Package sample draws point samples inside a study polygon and attaches
// raster values to them.
package sample

import (
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/terralab/geostat/internal/raster"
	"github.com/terralab/geostat/internal/vector"
)

// Observation is one sampled location with its measured value.
type Observation struct {
	X     float64 `csv:"x" json:"x"`
	Y     float64 `csv:"y" json:"y"`
	Value float64 `csv:"value" json:"value"`
}

// Scheme selects how sample locations are placed.
type Scheme string

const (
	SchemeRandom  Scheme = "random"
	SchemeRegular Scheme = "regular"
)

// ParseScheme validates a scheme name from configuration.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemeRandom, SchemeRegular:
		return Scheme(s), nil
	default:
		return "", eris.Errorf("sample: unknown scheme %q", s)
	}
}

// RandomInPolygon draws n points uniformly inside the polygon by rejection
// sampling over its bounding box. The same seed always yields the same
// points. The attempt cap guards against degenerate polygons whose area is a
// vanishing fraction of their bounding box.
func RandomInPolygon(poly geom.T, n int, seed uint64) ([]geom.Coord, error) {
	if n <= 0 {
		return nil, eris.Errorf("sample: invalid sample count %d", n)
	}
	b := poly.Bounds()
	minX, minY := b.Min(0), b.Min(1)
	spanX, spanY := b.Max(0)-minX, b.Max(1)-minY
	if spanX <= 0 || spanY <= 0 {
		return nil, eris.New("sample: polygon has empty extent")
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	maxAttempts := 10000 * n
	pts := make([]geom.Coord, 0, n)
	for attempts := 0; len(pts) < n; attempts++ {
		if attempts >= maxAttempts {
			return nil, eris.Errorf("sample: gave up after %d attempts, polygon too thin", maxAttempts)
		}
		c := geom.Coord{
			minX + rng.Float64()*spanX,
			minY + rng.Float64()*spanY,
		}
		if vector.PointInPolygon(c, poly) {
			pts = append(pts, c)
		}
	}
	return pts, nil
}

// RegularInPolygon lays a square grid over the polygon's bounding box and
// keeps the nodes falling inside. The spacing is chosen so the box holds
// roughly n nodes, so the returned count is approximate.
func RegularInPolygon(poly geom.T, n int) ([]geom.Coord, error) {
	if n <= 0 {
		return nil, eris.Errorf("sample: invalid sample count %d", n)
	}
	b := poly.Bounds()
	minX, minY := b.Min(0), b.Min(1)
	spanX, spanY := b.Max(0)-minX, b.Max(1)-minY
	if spanX <= 0 || spanY <= 0 {
		return nil, eris.New("sample: polygon has empty extent")
	}

	spacing := math.Sqrt(spanX * spanY / float64(n))
	var pts []geom.Coord
	for y := minY + spacing/2; y < minY+spanY; y += spacing {
		for x := minX + spacing/2; x < minX+spanX; x += spacing {
			c := geom.Coord{x, y}
			if vector.PointInPolygon(c, poly) {
				pts = append(pts, c)
			}
		}
	}
	if len(pts) == 0 {
		return nil, eris.New("sample: no grid nodes fall inside polygon")
	}
	return pts, nil
}

// FromRaster looks up the grid value at each point, dropping points on
// nodata cells.
func FromRaster(pts []geom.Coord, g *raster.Grid) []Observation {
	obs := make([]Observation, 0, len(pts))
	dropped := 0
	for _, c := range pts {
		v, ok := g.Bilinear(c.X(), c.Y())
		if !ok {
			dropped++
			continue
		}
		obs = append(obs, Observation{X: c.X(), Y: c.Y(), Value: v})
	}
	if dropped > 0 {
		zap.L().Debug("sample: dropped points on nodata cells", zap.Int("dropped", dropped))
	}
	return obs
}

// Coords returns the bare locations of a set of observations.
func Coords(obs []Observation) []geom.Coord {
	out := make([]geom.Coord, len(obs))
	for i, o := range obs {
		out[i] = geom.Coord{o.X, o.Y}
	}
	return out
}

// Values returns the measured values of a set of observations.
func Values(obs []Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Value
	}
	return out
}
