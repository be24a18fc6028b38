package models

import "time"

// OptimizationStatus represents lifecycle phases of an optimization run.
type OptimizationStatus string

const (
	OptimizationStatusRunning   OptimizationStatus = "RUNNING"
	OptimizationStatusCompleted OptimizationStatus = "COMPLETED"
	OptimizationStatusFailed    OptimizationStatus = "FAILED"
)

// Finished reports whether the run has reached a terminal state.
func (s OptimizationStatus) Finished() bool {
	return s == OptimizationStatusCompleted || s == OptimizationStatusFailed
}

// OptimizationRun is a point-in-time view of a run for a schedule.
type OptimizationRun struct {
	RunID        string             `json:"run_id"`
	ScheduleID   string             `json:"schedule_id"`
	Status       OptimizationStatus `json:"status"`
	Reason       string             `json:"reason,omitempty"`
	Cancelled    bool               `json:"cancelled"`
	Iterations   int                `json:"iterations"`
	Accepted     int                `json:"accepted"`
	Improvements int                `json:"improvements"`
	InitialScore Score              `json:"initial_score"`
	BestScore    Score              `json:"best_score"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
}
