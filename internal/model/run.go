package model

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a classification run.
type RunStatus string

const (
	// RunStatusRunning marks a run still driving brand pipelines.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted marks a run whose brands all reached a terminal state.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed marks a run aborted by a fatal error.
	RunStatusFailed RunStatus = "failed"
)

// Run identifies one execution of the engine over the catalog. Result
// storage keys are derived from the run id plus the brand and version, which
// keeps re-writes of the same version idempotent.
type Run struct {
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ID            string     `json:"id"`
	Status        RunStatus  `json:"status"`
	MaxIterations int        `json:"max_iterations"`
}

// Validate checks run shape before persistence.
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if r.MaxIterations <= 0 {
		return fmt.Errorf("run max iterations must be positive, got %d", r.MaxIterations)
	}
	switch r.Status {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
	default:
		return fmt.Errorf("unknown run status %q", r.Status)
	}
	return nil
}
