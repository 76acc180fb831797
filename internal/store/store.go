// Package store persists analysis runs in SQLite or PostgreSQL.
package store

import (
	"context"

	"github.com/terralab/geostat/internal/model"
	"github.com/terralab/geostat/internal/sample"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Name   string          `json:"name,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, spec model.StudySpec) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	SetRunError(ctx context.Context, runID string, message string) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, status model.PhaseStatus) error

	// Observations, in the run's projected CRS identified by srid.
	SaveObservations(ctx context.Context, runID string, srid int, obs []sample.Observation) (int64, error)
	GetObservations(ctx context.Context, runID string) ([]sample.Observation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
