// Package tessellate builds Voronoi diagrams over sample sites and
// aggregates raster values per cell.
package tessellate

import (
	"github.com/fogleman/delaunay"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Cell is one Voronoi region.
type Cell struct {
	Site    geom.Coord
	Polygon *geom.Polygon
}

// Voronoi tessellates the plane around the sites, clipping every cell to the
// bounding box. Each cell is carved from the box by cutting along the
// perpendicular bisector to each Delaunay neighbor, which keeps the clipping
// convex-on-convex.
func Voronoi(sites []geom.Coord, minX, minY, maxX, maxY float64) ([]Cell, error) {
	if len(sites) < 3 {
		return nil, eris.Errorf("tessellate: need at least 3 sites, got %d", len(sites))
	}
	if minX >= maxX || minY >= maxY {
		return nil, eris.New("tessellate: empty bounding box")
	}

	pts := make([]delaunay.Point, len(sites))
	for i, s := range sites {
		pts[i] = delaunay.Point{X: s.X(), Y: s.Y()}
	}
	tri, err := delaunay.Triangulate(pts)
	if err != nil {
		return nil, eris.Wrap(err, "tessellate: triangulate sites")
	}
	if len(tri.Triangles) == 0 {
		return nil, eris.New("tessellate: sites are collinear")
	}

	neighbors := adjacency(len(sites), tri.Triangles)

	box := [][2]float64{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY},
	}
	cells := make([]Cell, 0, len(sites))
	for i, s := range sites {
		poly := box
		for j := range neighbors[i] {
			poly = clipBisector(poly, pts[i], pts[j])
			if len(poly) < 3 {
				break
			}
		}
		if len(poly) < 3 {
			// Site outside the box, or a duplicate site.
			zap.L().Debug("tessellate: dropping empty cell", zap.Int("site", i))
			continue
		}
		cells = append(cells, Cell{Site: s, Polygon: ringPolygon(poly)})
	}
	return cells, nil
}

// adjacency collects, per site, the set of sites it shares a Delaunay edge
// with.
func adjacency(n int, triangles []int) []map[int]struct{} {
	adj := make([]map[int]struct{}, n)
	for i := range adj {
		adj[i] = make(map[int]struct{})
	}
	link := func(a, b int) {
		adj[a][b] = struct{}{}
		adj[b][a] = struct{}{}
	}
	for t := 0; t < len(triangles); t += 3 {
		a, b, c := triangles[t], triangles[t+1], triangles[t+2]
		link(a, b)
		link(b, c)
		link(c, a)
	}
	return adj
}

// clipBisector cuts the convex polygon with the half-plane of points closer
// to site than to other, using Sutherland-Hodgman.
func clipBisector(poly [][2]float64, site, other delaunay.Point) [][2]float64 {
	// Inside test: (p - midpoint) . (other - site) <= 0.
	mx := (site.X + other.X) / 2
	my := (site.Y + other.Y) / 2
	dx := other.X - site.X
	dy := other.Y - site.Y

	side := func(p [2]float64) float64 {
		return (p[0]-mx)*dx + (p[1]-my)*dy
	}

	var out [][2]float64
	for i, cur := range poly {
		prev := poly[(i+len(poly)-1)%len(poly)]
		sc, sp := side(cur), side(prev)
		if sp <= 0 != (sc <= 0) {
			// Edge crosses the bisector.
			t := sp / (sp - sc)
			out = append(out, [2]float64{
				prev[0] + t*(cur[0]-prev[0]),
				prev[1] + t*(cur[1]-prev[1]),
			})
		}
		if sc <= 0 {
			out = append(out, cur)
		}
	}
	return out
}

func ringPolygon(pts [][2]float64) *geom.Polygon {
	flat := make([]float64, 0, (len(pts)+1)*2)
	for _, p := range pts {
		flat = append(flat, p[0], p[1])
	}
	flat = append(flat, pts[0][0], pts[0][1])
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}
