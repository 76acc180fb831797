package crs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		wantCode int
		wantErr  bool
	}{
		{"EPSG:4326", 4326, false},
		{"epsg:3857", 3857, false},
		{"EPSG:32632", 32632, false},
		{"EPSG:32733", 32733, false},
		{"+proj=utm +zone=17 +datum=WGS84 +units=m +no_defs", 0, false},
		{"EPSG:99999", 0, true},
		{"", 0, true},
		{"bogus", 0, true},
	}
	for _, tc := range tests {
		srs, err := Parse(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.wantCode, srs.Code, tc.in)
	}
}

func TestUTMForLongitude(t *testing.T) {
	assert.Equal(t, 32632, UTMForLongitude(9.0, true).Code)   // central Germany
	assert.Equal(t, 32617, UTMForLongitude(-80.0, true).Code) // Florida
	assert.Equal(t, 32701, UTMForLongitude(-179.9, false).Code)
	assert.Equal(t, 32760, UTMForLongitude(179.9, false).Code)
}

func TestIsGeographic(t *testing.T) {
	assert.True(t, WGS84.IsGeographic())
	assert.False(t, WebMercator.IsGeographic())
	assert.False(t, UTM(32, true).IsGeographic())
}

// Round-trip: projecting to UTM and back must return coordinates within
// floating-point tolerance of the originals.
func TestTransformRoundTrip(t *testing.T) {
	utm := UTM(32, true)
	fwd, err := NewTransform(WGS84, utm)
	require.NoError(t, err)
	inv, err := NewTransform(utm, WGS84)
	require.NoError(t, err)

	coords := []geom.Coord{
		{9.0, 48.0},
		{9.5, 48.5},
		{10.2, 47.3},
	}
	projected, err := fwd.Coords(coords)
	require.NoError(t, err)
	back, err := inv.Coords(projected)
	require.NoError(t, err)

	for i := range coords {
		assert.InDelta(t, coords[i][0], back[i][0], 1e-6)
		assert.InDelta(t, coords[i][1], back[i][1], 1e-6)
	}
}

func TestTransformGeomDoesNotMutate(t *testing.T) {
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		9, 48, 10, 48, 10, 49, 9, 49, 9, 48,
	}, []int{10})
	orig := append([]float64(nil), poly.FlatCoords()...)

	tr, err := NewTransform(WGS84, UTM(32, true))
	require.NoError(t, err)
	out, err := tr.Geom(poly)
	require.NoError(t, err)

	assert.Equal(t, orig, poly.FlatCoords(), "input geometry must be unchanged")
	assert.IsType(t, &geom.Polygon{}, out)
	assert.NotEqual(t, orig, out.(*geom.Polygon).FlatCoords())
}

// Cross-method consistency: the area of the same polygon computed in two
// different projected CRSs and on the sphere agree within a small relative
// tolerance, not exactly.
func TestAreaCrossMethodConsistency(t *testing.T) {
	// Roughly 1°x1° cell near 12°E, on the seam between UTM zones 32 and 33.
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		11.5, 47.5, 12.5, 47.5, 12.5, 48.5, 11.5, 48.5, 11.5, 47.5,
	}, []int{10})

	spherical, err := SphericalArea(poly, WGS84)
	require.NoError(t, err)
	require.Greater(t, spherical, 0.0)

	for _, zone := range []int{32, 33} {
		tr, err := NewTransform(WGS84, UTM(zone, true))
		require.NoError(t, err)
		projected, err := tr.Geom(poly)
		require.NoError(t, err)
		planar := PlanarArea(projected)

		rel := math.Abs(planar-spherical) / spherical
		assert.Less(t, rel, 0.01, "zone %d relative area error %g", zone, rel)
	}
}

func TestPlanarArea(t *testing.T) {
	square := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
	}, []int{10})
	assert.InDelta(t, 100.0, PlanarArea(square), 1e-9)

	// Square with a 2x2 hole.
	holed := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
		4, 4, 6, 4, 6, 6, 4, 6, 4, 4,
	}, []int{10, 20})
	assert.InDelta(t, 96.0, PlanarArea(holed), 1e-9)

	mp := geom.NewMultiPolygonFlat(geom.XY, []float64{
		0, 0, 1, 0, 1, 1, 0, 1, 0, 0,
		5, 5, 7, 5, 7, 7, 5, 7, 5, 5,
	}, [][]int{{10}, {20}})
	assert.InDelta(t, 5.0, PlanarArea(mp), 1e-9)
}

func TestSphericalAreaRequiresGeographic(t *testing.T) {
	square := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 1, 0, 1, 1, 0, 1, 0, 0,
	}, []int{10})
	_, err := SphericalArea(square, WebMercator)
	assert.Error(t, err)
}

func TestHaversine(t *testing.T) {
	// One degree of longitude along the equator.
	d := Haversine(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 100)

	// Zero distance.
	assert.InDelta(t, 0, Haversine(12.5, 41.9, 12.5, 41.9), 1e-9)
}
