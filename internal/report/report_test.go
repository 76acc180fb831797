package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terralab/geostat/internal/crs"
	"github.com/terralab/geostat/internal/esda"
	"github.com/terralab/geostat/internal/interp"
	"github.com/terralab/geostat/internal/raster"
	"github.com/terralab/geostat/internal/sample"
	"github.com/terralab/geostat/internal/tessellate"
)

func testObs() []sample.Observation {
	return []sample.Observation{
		{X: 10, Y: 10, Value: 1},
		{X: 20, Y: 30, Value: 2},
		{X: 40, Y: 15, Value: 5},
		{X: 70, Y: 60, Value: 3},
	}
}

func testZones() []tessellate.ZoneStat {
	return []tessellate.ZoneStat{
		{X: 25, Y: 25, Area: 2500, Count: 10, Min: 1, Max: 3, Mean: 2, Std: 0.5},
		{X: 75, Y: 75, Area: 2500, Count: 12, Min: 2, Max: 6, Mean: 4, Std: 1.1},
	}
}

func requireNonEmptyFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestVariogramPNG(t *testing.T) {
	emp := []interp.EmpiricalBin{
		{Lag: 5, Gamma: 1, Count: 20},
		{Lag: 15, Gamma: 3, Count: 30},
		{Lag: 25, Gamma: 4, Count: 25},
	}
	v := interp.Variogram{Model: interp.Spherical, Sill: 4, Range: 25}

	path := filepath.Join(t.TempDir(), "variogram.png")
	require.NoError(t, VariogramPNG(emp, v, path))
	requireNonEmptyFile(t, path)
}

func TestSurfacePNG(t *testing.T) {
	g, err := raster.New(5, 5, 0, 0, 10, crs.UTM(32, true))
	require.NoError(t, err)
	for i := range g.Data {
		g.Data[i] = float64(i)
	}

	path := filepath.Join(t.TempDir(), "surface.png")
	require.NoError(t, SurfacePNG(g, "prediction", path))
	requireNonEmptyFile(t, path)
}

func TestHistogramPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hist.png")
	require.NoError(t, HistogramPNG([]float64{1, 2, 2, 3, 3, 3, 4, 9}, "residuals", path))
	requireNonEmptyFile(t, path)

	assert.Error(t, HistogramPNG(nil, "empty", path))
}

func TestObservationsHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.html")
	require.NoError(t, ObservationsHTML(testObs(), "samples", path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "echarts")

	assert.Error(t, ObservationsHTML(nil, "samples", path))
}

func TestZonesHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.html")
	require.NoError(t, ZonesHTML(testZones(), "zones", path))
	requireNonEmptyFile(t, path)
}

func TestWriteObservationsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.csv")
	require.NoError(t, WriteObservationsCSV(testObs(), path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "x,y,value", lines[0])
	assert.Len(t, lines, 5)
}

func TestWriteZonesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.csv")
	require.NoError(t, WriteZonesCSV(testZones(), path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "area")
}

func TestWriteLocalMoranCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lisa.csv")
	locals := []esda.LocalMoran{
		{I: 1.2, Quadrant: "HH"},
		{I: -0.4, Quadrant: "LH"},
	}
	require.NoError(t, WriteLocalMoranCSV(locals, path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "i,quadrant", lines[0])
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[2], "LH")
}

func TestWriteXLSXAndSummary(t *testing.T) {
	dir := t.TempDir()
	wb := Workbook{
		Observations: testObs(),
		Zones:        testZones(),
		Moran:        &esda.MoranResult{I: 0.4, Expected: -0.02, Z: 3.1, PValue: 0.002},
	}

	xlsxPath := filepath.Join(dir, "results.xlsx")
	require.NoError(t, WriteXLSX(wb, xlsxPath))
	requireNonEmptyFile(t, xlsxPath)

	sumPath := filepath.Join(dir, "summary.txt")
	require.NoError(t, WriteSummary(wb, sumPath))
	b, err := os.ReadFile(sumPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "moran's I: 0.4000")
}
