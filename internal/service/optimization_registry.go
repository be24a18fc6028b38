package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// optimizationRun is the registry entry of one run. The input solution is private to the run.
type optimizationRun struct {
	mu         sync.RWMutex
	snapshot   models.OptimizationRun
	placements []models.Placement
	breakdown  models.ScoreBreakdown
	result     *OptimizationResult

	input  models.ScheduleSolution
	budget Budget
	seed   int64
	ctx    context.Context
	cancel context.CancelFunc
}

func newOptimizationRun(runID string, solution models.ScheduleSolution, budget Budget, seed int64, startedAt time.Time) *optimizationRun {
	ctx, cancel := context.WithCancel(context.Background())
	breakdown := ScoreBreakdownOf(solution)
	score := breakdown.Score()
	return &optimizationRun{
		snapshot: models.OptimizationRun{
			RunID:        runID,
			ScheduleID:   solution.ScheduleID,
			Status:       models.OptimizationStatusRunning,
			InitialScore: score,
			BestScore:    score,
			StartedAt:    startedAt,
		},
		placements: models.ClonePlacements(solution.Placements),
		breakdown:  breakdown,
		input:      solution.Clone(),
		budget:     budget,
		seed:       seed,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// view returns copies safe to hand to callers while the search keeps running.
func (r *optimizationRun) view() (models.OptimizationRun, []models.Placement, models.ScoreBreakdown) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := r.snapshot
	if snapshot.FinishedAt != nil {
		finished := *snapshot.FinishedAt
		snapshot.FinishedAt = &finished
	}
	return snapshot, models.ClonePlacements(r.placements), r.breakdown
}

func (r *optimizationRun) progress(p OptimizationProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.Iterations = p.Iterations
	r.snapshot.Accepted = p.Accepted
	r.snapshot.Improvements = p.Improvements
	r.snapshot.BestScore = p.Best
	r.breakdown = p.Breakdown
	r.placements = p.Placements
}

func (r *optimizationRun) finish(status models.OptimizationStatus, reason string, result *OptimizationResult, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.Status = status
	r.snapshot.Reason = reason
	r.snapshot.FinishedAt = &at
	if result != nil {
		r.result = result
		r.snapshot.Cancelled = result.Cancelled
		r.snapshot.Iterations = result.Iterations
		r.snapshot.Accepted = result.Accepted
		r.snapshot.Improvements = result.Improvements
		r.snapshot.BestScore = result.Score
		r.breakdown = result.Breakdown
		r.placements = models.ClonePlacements(result.Solution.Placements)
	}
	r.cancel()
}

func (r *optimizationRun) finished() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.Status.Finished()
}

func (r *optimizationRun) runID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.RunID
}

func (r *optimizationRun) finishedAt() (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snapshot.FinishedAt == nil {
		return time.Time{}, false
	}
	return *r.snapshot.FinishedAt, true
}

// RunRegistry tracks at most one optimization run per schedule.
type RunRegistry struct {
	mu        sync.RWMutex
	runs      map[string]*optimizationRun
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewRunRegistry builds a registry that forgets finished runs after retention.
func NewRunRegistry(retention time.Duration, logger *zap.Logger) *RunRegistry {
	if retention <= 0 {
		retention = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunRegistry{
		runs:      make(map[string]*optimizationRun),
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// IsActive reports whether a run for the schedule is still executing.
func (r *RunRegistry) IsActive(scheduleID string) bool {
	if r == nil {
		return false
	}
	run, ok := r.get(scheduleID)
	return ok && !run.finished()
}

// register stores a run unless an active one exists. A finished run is replaced.
func (r *RunRegistry) register(run *optimizationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scheduleID := run.input.ScheduleID
	if existing, ok := r.runs[scheduleID]; ok && !existing.finished() {
		return appErrors.Clone(appErrors.ErrConflict, "an optimization run is already active for this schedule")
	}
	r.runs[scheduleID] = run
	return nil
}

func (r *RunRegistry) get(scheduleID string) (*optimizationRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[scheduleID]
	return run, ok
}

// remove drops the run only if it is still the one registered under runID.
func (r *RunRegistry) remove(scheduleID, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[scheduleID]; ok && run.runID() == runID {
		run.cancel()
		delete(r.runs, scheduleID)
	}
}

// EvictExpired removes finished runs older than the retention window and returns how many were dropped.
func (r *RunRegistry) EvictExpired() int {
	cutoff := r.now().Add(-r.retention)
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for scheduleID, run := range r.runs {
		if at, ok := run.finishedAt(); ok && at.Before(cutoff) {
			delete(r.runs, scheduleID)
			evicted++
		}
	}
	return evicted
}

// StartJanitor evicts expired runs periodically until ctx is done.
func (r *RunRegistry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.retention / 4
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.EvictExpired(); n > 0 {
					r.logger.Sugar().Infow("optimization runs evicted", "count", n)
				}
			}
		}
	}()
}
