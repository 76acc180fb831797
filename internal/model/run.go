// Package model defines the analysis run lifecycle and its persisted shapes.
package model

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/terralab/geostat/internal/esda"
	"github.com/terralab/geostat/internal/interp"
	"github.com/terralab/geostat/internal/regress"
)

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// PhaseStatus represents the state of one pipeline stage within a run.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// StudySpec describes one study area analysis request.
type StudySpec struct {
	Name      string  `yaml:"name" json:"name"`
	Country   string  `yaml:"country" json:"country"`             // admin name matched against boundary attributes
	Boundary  string  `yaml:"boundary" json:"boundary,omitempty"` // optional GeoJSON file overriding the remote fetch
	EPSG      int     `yaml:"epsg" json:"epsg"`                   // projected CRS; 0 picks a UTM zone automatically
	CellSize  float64 `yaml:"cell_size" json:"cell_size"`         // analysis resolution in projected units
	Points    int     `yaml:"points" json:"points"`
	Seed      uint64  `yaml:"seed" json:"seed"`
	Scheme    string  `yaml:"scheme" json:"scheme"`
	Model     string  `yaml:"variogram_model" json:"variogram_model"`
	Bins      int     `yaml:"variogram_bins" json:"variogram_bins"`
	IDWPower  float64 `yaml:"idw_power" json:"idw_power"`
	Neighbors int     `yaml:"neighbors" json:"neighbors"`
	Weights   string  `yaml:"weights" json:"weights"` // queen, rook, knn or distance
	Perms     int     `yaml:"permutations" json:"permutations"`
}

// Validate rejects specs the pipeline cannot run.
func (s StudySpec) Validate() error {
	if s.Name == "" {
		return eris.New("model: study spec needs a name")
	}
	if s.Country == "" && s.Boundary == "" {
		return eris.New("model: study spec needs a country or a boundary file")
	}
	if s.CellSize <= 0 {
		return eris.Errorf("model: invalid cell size %g", s.CellSize)
	}
	if s.Points < 10 {
		return eris.Errorf("model: need at least 10 sample points, got %d", s.Points)
	}
	return nil
}

// RunResult summarizes a completed run.
type RunResult struct {
	Observations int                `json:"observations"`
	Zones        int                `json:"zones"`
	Variogram    interp.Variogram   `json:"variogram"`
	Moran        *esda.MoranResult  `json:"moran,omitempty"`
	GearyC       float64            `json:"geary_c,omitempty"`
	OLS          *regress.OLSResult `json:"ols,omitempty"`
	SEM          *regress.SEMResult `json:"sem,omitempty"`
	Artifacts    []string           `json:"artifacts,omitempty"`
	Durations    map[string]float64 `json:"durations_secs,omitempty"`
}

// Run is one tracked execution of the analysis pipeline.
type Run struct {
	ID        string     `json:"id"`
	Spec      StudySpec  `json:"spec"`
	Status    RunStatus  `json:"status"`
	Error     string     `json:"error,omitempty"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunPhase is one pipeline stage within a run.
type RunPhase struct {
	ID          string      `json:"id"`
	RunID       string      `json:"run_id"`
	Name        string      `json:"name"`
	Status      PhaseStatus `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// CanTransition reports whether a run may move from s to next.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case RunStatusQueued:
		return next == RunStatusRunning || next == RunStatusFailed
	case RunStatusRunning:
		return next == RunStatusComplete || next == RunStatusFailed
	default:
		return false
	}
}
