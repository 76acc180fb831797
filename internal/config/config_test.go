package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Overpass.Endpoint)
	assert.Equal(t, 200, cfg.Sample.Points)
	assert.Equal(t, int64(42), cfg.Sample.Seed)
	assert.Equal(t, "random", cfg.Sample.Scheme)
	assert.Equal(t, "spherical", cfg.Interp.VariogramModel)
	assert.Equal(t, 15, cfg.Interp.VariogramBins)
	assert.InDelta(t, 2.0, cfg.Interp.IDWPower, 0.001)
	assert.Equal(t, 16, cfg.Interp.Neighbors)
	assert.Equal(t, "queen", cfg.Weights.Scheme)
	assert.Equal(t, 6, cfg.Weights.KNearest)
	assert.Equal(t, 3000.0, cfg.Weights.DistanceBand)
	assert.Equal(t, 999, cfg.Weights.Permutations)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.InDelta(t, 2.0, cfg.Fetch.RatePerSec, 0.001)
	assert.Contains(t, cfg.Fetch.TileURL, "srtm")
	assert.Equal(t, "out", cfg.Report.OutputDir)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/geostat
log:
  level: debug
  format: console
sample:
  points: 500
  seed: 7
weights:
  scheme: rook
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/geostat", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 500, cfg.Sample.Points)
	assert.Equal(t, int64(7), cfg.Sample.Seed)
	assert.Equal(t, "rook", cfg.Weights.Scheme)
	// Defaults still apply for unset values
	assert.Equal(t, 15, cfg.Interp.VariogramBins)
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
