// Package vector holds the in-memory vector data model: ordered feature
// collections of go-geom geometries with an attached coordinate reference
// system. Collections are replaced, not mutated, by transforms.
package vector

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/terralab/geostat/internal/crs"
)

// Feature is one geometry with its attribute row.
type Feature struct {
	ID         string         `json:"id,omitempty"`
	Geometry   geom.T         `json:"-"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Collection is an ordered set of features sharing one CRS.
type Collection struct {
	SRS      crs.SRS
	Features []*Feature
}

// NewCollection creates an empty collection in the given CRS.
func NewCollection(srs crs.SRS) *Collection {
	return &Collection{SRS: srs}
}

// Len returns the number of features.
func (c *Collection) Len() int { return len(c.Features) }

// Filter returns a new collection containing the features for which keep
// returns true. Geometries are shared, not copied.
func (c *Collection) Filter(keep func(*Feature) bool) *Collection {
	out := NewCollection(c.SRS)
	for _, f := range c.Features {
		if keep(f) {
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// ByProperty returns the features whose property key equals value.
func (c *Collection) ByProperty(key string, value any) *Collection {
	return c.Filter(func(f *Feature) bool {
		v, ok := f.Properties[key]
		return ok && v == value
	})
}

// First returns the first feature, or an error for an empty collection.
func (c *Collection) First() (*Feature, error) {
	if len(c.Features) == 0 {
		return nil, eris.New("vector: empty collection")
	}
	return c.Features[0], nil
}

// Reproject returns a new collection with every geometry transformed to dst.
// The receiver is left untouched.
func (c *Collection) Reproject(dst crs.SRS) (*Collection, error) {
	if c.SRS.Equal(dst) {
		return c, nil
	}
	tr, err := crs.NewTransform(c.SRS, dst)
	if err != nil {
		return nil, err
	}
	out := NewCollection(dst)
	for _, f := range c.Features {
		g, err := tr.Geom(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: reproject feature %s", f.ID)
		}
		out.Features = append(out.Features, &Feature{
			ID:         f.ID,
			Geometry:   g,
			Properties: f.Properties,
		})
	}
	return out, nil
}

// Bounds returns the 2D bounding box of all features as minX, minY, maxX, maxY.
func (c *Collection) Bounds() (minX, minY, maxX, maxY float64, err error) {
	if len(c.Features) == 0 {
		return 0, 0, 0, 0, eris.New("vector: bounds of empty collection")
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, f := range c.Features {
		flat := f.Geometry.FlatCoords()
		stride := f.Geometry.Stride()
		for i := 0; i+1 < len(flat); i += stride {
			minX = math.Min(minX, flat[i])
			maxX = math.Max(maxX, flat[i])
			minY = math.Min(minY, flat[i+1])
			maxY = math.Max(maxY, flat[i+1])
		}
	}
	return minX, minY, maxX, maxY, nil
}

// PointInPolygon reports whether the XY point lies inside a Polygon or
// MultiPolygon, holes excluded.
func PointInPolygon(p geom.Coord, g geom.T) bool {
	switch gg := g.(type) {
	case *geom.Polygon:
		return pointInPolygonFlat(p, gg.FlatCoords(), gg.Ends(), 0)
	case *geom.MultiPolygon:
		offset := 0
		for _, ends := range gg.Endss() {
			if len(ends) == 0 {
				continue
			}
			if pointInPolygonFlat(p, gg.FlatCoords(), ends, offset) {
				return true
			}
			offset = ends[len(ends)-1]
		}
	}
	return false
}

func pointInPolygonFlat(p geom.Coord, flat []float64, ends []int, offset int) bool {
	if len(ends) == 0 {
		return false
	}
	if !xy.IsPointInRing(geom.XY, p, flat[offset:ends[0]]) {
		return false
	}
	start := ends[0]
	for _, end := range ends[1:] {
		if xy.IsPointInRing(geom.XY, p, flat[start:end]) {
			return false // inside a hole
		}
		start = end
	}
	return true
}

// Centroid returns the area-weighted centroid of a polygonal geometry, or
// the mean of the coordinates for non-areal geometries.
func Centroid(g geom.T) geom.Coord {
	switch gg := g.(type) {
	case *geom.Polygon:
		return polygonCentroid(gg.FlatCoords(), gg.Ends(), 0)
	case *geom.MultiPolygon:
		var cx, cy, area float64
		offset := 0
		for _, ends := range gg.Endss() {
			if len(ends) == 0 {
				continue
			}
			c := polygonCentroid(gg.FlatCoords(), ends, offset)
			a := ringArea(gg.FlatCoords()[offset:ends[0]])
			cx += c[0] * a
			cy += c[1] * a
			area += a
			offset = ends[len(ends)-1]
		}
		if area == 0 {
			return meanCoord(gg.FlatCoords(), gg.Stride())
		}
		return geom.Coord{cx / area, cy / area}
	default:
		return meanCoord(g.FlatCoords(), g.Stride())
	}
}

// polygonCentroid computes the centroid of the shell ring. Hole contribution
// is negligible for the contiguity and regression uses in this toolkit.
func polygonCentroid(flat []float64, ends []int, offset int) geom.Coord {
	ring := flat[offset:ends[0]]
	n := len(ring) / 2
	if n < 3 {
		return meanCoord(ring, 2)
	}
	var cx, cy float64
	a := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := ring[2*i]*ring[2*j+1] - ring[2*j]*ring[2*i+1]
		cx += (ring[2*i] + ring[2*j]) * cross
		cy += (ring[2*i+1] + ring[2*j+1]) * cross
		a += cross
	}
	if a == 0 {
		return meanCoord(ring, 2)
	}
	return geom.Coord{cx / (3 * a), cy / (3 * a)}
}

func ringArea(ring []float64) float64 {
	n := len(ring) / 2
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += ring[2*i]*ring[2*j+1] - ring[2*j]*ring[2*i+1]
	}
	return math.Abs(sum / 2)
}

func meanCoord(flat []float64, stride int) geom.Coord {
	if len(flat) < stride || stride < 2 {
		return geom.Coord{0, 0}
	}
	var sx, sy float64
	n := 0
	for i := 0; i+1 < len(flat); i += stride {
		sx += flat[i]
		sy += flat[i+1]
		n++
	}
	return geom.Coord{sx / float64(n), sy / float64(n)}
}
