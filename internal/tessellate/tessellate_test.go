package tessellate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/terralab/geostat/internal/crs"
	"github.com/terralab/geostat/internal/raster"
	"github.com/terralab/geostat/internal/vector"
)

// Four sites at quadrant centers of a 100x100 box give four equal square
// cells.
func quadrantSites() []geom.Coord {
	return []geom.Coord{
		{25, 25}, {75, 25}, {25, 75}, {75, 75},
	}
}

func TestVoronoiQuadrants(t *testing.T) {
	cells, err := Voronoi(quadrantSites(), 0, 0, 100, 100)
	require.NoError(t, err)
	require.Len(t, cells, 4)

	for _, c := range cells {
		assert.InDelta(t, 2500.0, crs.PlanarArea(c.Polygon), 1e-6)
		// Every cell contains its own site.
		assert.True(t, vector.PointInPolygon(c.Site, c.Polygon))
	}
}

func TestVoronoiPartitionsBox(t *testing.T) {
	sites := []geom.Coord{
		{10, 14}, {81, 30}, {45, 77}, {62, 11}, {20, 60}, {90, 90}, {51, 43},
	}
	cells, err := Voronoi(sites, 0, 0, 100, 100)
	require.NoError(t, err)
	require.Len(t, cells, len(sites))

	total := 0.0
	for _, c := range cells {
		area := crs.PlanarArea(c.Polygon)
		assert.Positive(t, area)
		total += area
	}
	// Cells tile the box exactly.
	assert.InDelta(t, 100*100, total, 1e-6)
}

func TestVoronoiNearestSiteProperty(t *testing.T) {
	sites := []geom.Coord{{30, 30}, {70, 30}, {50, 80}}
	cells, err := Voronoi(sites, 0, 0, 100, 100)
	require.NoError(t, err)

	// Any point inside a cell is at least as close to its site as to the
	// others.
	probe := geom.Coord{35, 25}
	for _, c := range cells {
		if !vector.PointInPolygon(probe, c.Polygon) {
			continue
		}
		d0 := dist2(probe, c.Site)
		for _, s := range sites {
			assert.LessOrEqual(t, d0, dist2(probe, s)+1e-9)
		}
	}
}

func dist2(a, b geom.Coord) float64 {
	dx := a.X() - b.X()
	dy := a.Y() - b.Y()
	return dx*dx + dy*dy
}

func TestVoronoiErrors(t *testing.T) {
	_, err := Voronoi([]geom.Coord{{0, 0}, {1, 1}}, 0, 0, 10, 10)
	assert.Error(t, err)

	collinear := []geom.Coord{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	_, err = Voronoi(collinear, 0, 0, 10, 10)
	assert.Error(t, err)

	_, err = Voronoi(quadrantSites(), 100, 100, 0, 0)
	assert.Error(t, err)
}

func TestZonalStats(t *testing.T) {
	// 10x10 grid over the unit box, west half 1, east half 5.
	g, err := raster.New(10, 10, 0, 0, 10, crs.UTM(32, true))
	require.NoError(t, err)
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			if col < 5 {
				g.SetValue(col, row, 1)
			} else {
				g.SetValue(col, row, 5)
			}
		}
	}

	cells, err := Voronoi(quadrantSites(), 0, 0, 100, 100)
	require.NoError(t, err)
	stats, err := ZonalStats(cells, g)
	require.NoError(t, err)
	require.Len(t, stats, 4)

	for _, zs := range stats {
		assert.InDelta(t, 2500.0, zs.Area, 1e-6)
		if zs.X < 50 {
			assert.InDelta(t, 1.0, zs.Mean, 1e-12)
		} else {
			assert.InDelta(t, 5.0, zs.Mean, 1e-12)
		}
		assert.Positive(t, zs.Count)
	}
}

func TestZonalStatsEmpty(t *testing.T) {
	g, err := raster.New(2, 2, 0, 0, 1, crs.UTM(32, true))
	require.NoError(t, err)
	_, err = ZonalStats(nil, g)
	assert.Error(t, err)
}
