package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terralab/geostat/internal/esda"
	"github.com/terralab/geostat/internal/interp"
	"github.com/terralab/geostat/internal/model"
	"github.com/terralab/geostat/internal/sample"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateRun_And_GetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testSpec())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, "austria-elevation", run.Spec.Name)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, fetched.ID)
	assert.Equal(t, "Austria", fetched.Spec.Country)
	assert.Empty(t, fetched.Error)
	assert.Nil(t, fetched.Result)
}

func TestSQLite_CreateRun_InvalidSpec(t *testing.T) {
	st := newTestSQLiteStore(t)

	spec := testSpec()
	spec.Points = 2
	_, err := st.CreateRun(context.Background(), spec)
	require.Error(t, err)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testSpec())
	require.NoError(t, err)

	err = st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning)
	require.NoError(t, err)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, fetched.Status)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_UpdateRunStatus_InvalidTransition(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testSpec())
	require.NoError(t, err)

	// A queued run must pass through running before completing.
	err = st.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status transition")

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, fetched.Status)
}

func TestSQLite_Observations_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testSpec())
	require.NoError(t, err)

	obs := []sample.Observation{
		{X: 500100, Y: 5300200, Value: 412.5},
		{X: 500900, Y: 5300800, Value: 388.0},
		{X: 501400, Y: 5301100, Value: 451.25},
	}
	n, err := st.SaveObservations(ctx, run.ID, 32633, obs)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := st.GetObservations(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, obs, got)

	// Unknown runs have no observations.
	got, err = st.GetObservations(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_SetRunError(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testSpec())
	require.NoError(t, err)

	err = st.SetRunError(ctx, run.ID, "kriging system is singular")
	require.NoError(t, err)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, fetched.Status)
	assert.Equal(t, "kriging system is singular", fetched.Error)
}

func TestSQLite_UpdateRunResult(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testSpec())
	require.NoError(t, err)

	result := &model.RunResult{
		Observations: 200,
		Zones:        180,
		Variogram:    interp.Variogram{Model: interp.Spherical, Nugget: 10, Sill: 250, Range: 12000},
		Moran:        &esda.MoranResult{I: 0.42, Expected: -1.0 / 199, PValue: 0.001},
		GearyC:       0.61,
		Artifacts:    []string{"variogram.png", "surface.png"},
		Durations:    map[string]float64{"kriging": 3.2},
	}
	err = st.UpdateRunResult(ctx, run.ID, result)
	require.NoError(t, err)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, fetched.Status)
	require.NotNil(t, fetched.Result)
	assert.Equal(t, 200, fetched.Result.Observations)
	assert.Equal(t, interp.Spherical, fetched.Result.Variogram.Model)
	require.NotNil(t, fetched.Result.Moran)
	assert.InDelta(t, 0.42, fetched.Result.Moran.I, 1e-12)
	assert.Len(t, fetched.Result.Artifacts, 2)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	s1 := testSpec()
	s2 := testSpec()
	s2.Name = "tirol-elevation"
	_, err := st.CreateRun(ctx, s1)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, s2)
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLite_ListRuns_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testSpec())
	require.NoError(t, err)
	err = st.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete)
	require.NoError(t, err)

	// Second run stays queued.
	_, err = st.CreateRun(ctx, testSpec())
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete, Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestSQLite_ListRuns_FilterByName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	s1 := testSpec()
	s2 := testSpec()
	s2.Name = "tirol-elevation"
	_, err := st.CreateRun(ctx, s1)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, s2)
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Name: "tirol-elevation", Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "tirol-elevation", runs[0].Spec.Name)
}

func TestSQLite_CreatePhase_And_CompletePhase(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testSpec())
	require.NoError(t, err)

	phase, err := st.CreatePhase(ctx, run.ID, "sample")
	require.NoError(t, err)
	assert.NotEmpty(t, phase.ID)
	assert.Equal(t, "sample", phase.Name)
	assert.Equal(t, model.PhaseStatusRunning, phase.Status)

	err = st.CompletePhase(ctx, phase.ID, model.PhaseStatusComplete)
	require.NoError(t, err)
}

func TestSQLite_CompletePhase_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompletePhase(context.Background(), "missing", model.PhaseStatusComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phase not found")
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.Migrate(context.Background())
	require.NoError(t, err)
}
