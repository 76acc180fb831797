package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terralab/geostat/internal/config"
	"github.com/terralab/geostat/internal/model"
	"github.com/terralab/geostat/internal/pipeline"
	"github.com/terralab/geostat/internal/sample"
	"github.com/terralab/geostat/internal/store"
)

func testRouter(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	dir := t.TempDir()
	st, err := store.NewSQLite(filepath.Join(dir, "geostat.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	cfg = &config.Config{}
	cfg.Report.OutputDir = dir

	return newRouter(st, pipeline.New(cfg, st, nil, nil)), st
}

func TestServeHealth(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeRuns(t *testing.T) {
	router, st := testRouter(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.StudySpec{
		Name: "austria-elevation", Country: "Austria", CellSize: 1000, Points: 200,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?status=complete", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Empty(t, runs)
}

func TestServeRunDetail(t *testing.T) {
	router, st := testRouter(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.StudySpec{
		Name: "tirol-elevation", Country: "Austria", CellSize: 500, Points: 100,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "tirol-elevation", got.Spec.Name)
	assert.Equal(t, model.RunStatusQueued, got.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeRunObservations(t *testing.T) {
	router, st := testRouter(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.StudySpec{
		Name: "tirol-elevation", Country: "Austria", CellSize: 500, Points: 100,
	})
	require.NoError(t, err)

	obs := []sample.Observation{
		{X: 500100, Y: 5300200, Value: 412.5},
		{X: 500900, Y: 5300800, Value: 388.0},
	}
	_, err = st.SaveObservations(ctx, run.ID, 32633, obs)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID+"/observations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []sample.Observation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, obs, got)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing/observations", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeRejectsInvalidSpec(t *testing.T) {
	router, _ := testRouter(t)

	body := `{"name":"bad","country":"Austria","cell_size":0,"points":0}`
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
