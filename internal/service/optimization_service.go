package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type optimizationQueue interface {
	TryEnqueue(job jobs.Job) error
}

type placementReplacer interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Placement, error)
	ReplaceForSchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string, placements []models.Placement) error
}

type scheduleToucher interface {
	Touch(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type universeLoader interface {
	universeProvider
	Invalidate(ctx context.Context, scheduleID string)
}

// OptimizationConfig holds the default search budget.
type OptimizationConfig struct {
	Enabled       bool
	MaxIterations int
	MaxDuration   time.Duration
	Seed          int64
}

// OptimizationService starts, observes, cancels and applies background optimization runs.
type OptimizationService struct {
	registry   *RunRegistry
	queue      optimizationQueue
	placements placementReplacer
	schedules  scheduleToucher
	resources  universeLoader
	tx         txProvider
	publisher  schedulePublisher
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        OptimizationConfig
	newID      func() string
	now        func() time.Time
}

// NewOptimizationService wires the optimization dependencies.
func NewOptimizationService(
	registry *RunRegistry,
	queue optimizationQueue,
	placements placementReplacer,
	schedules scheduleToucher,
	resources universeLoader,
	tx txProvider,
	publisher schedulePublisher,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg OptimizationConfig,
) *OptimizationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OptimizationService{
		registry:   registry,
		queue:      queue,
		placements: placements,
		schedules:  schedules,
		resources:  resources,
		tx:         tx,
		publisher:  publisher,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		newID:      func() string { return uuid.NewString() },
		now:        time.Now,
	}
}

// IsActive reports whether the schedule has a run that has not finished yet.
func (s *OptimizationService) IsActive(scheduleID string) bool {
	if s == nil {
		return false
	}
	return s.registry.IsActive(scheduleID)
}

// StartOptimization snapshots the schedule and queues a run for it.
func (s *OptimizationService) StartOptimization(ctx context.Context, scheduleID string, req dto.StartOptimizationRequest) (*dto.StartOptimizationResponse, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "optimizer is disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid optimization payload")
	}
	if _, err := s.resources.EnsureSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	if s.registry.IsActive(scheduleID) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an optimization run is already active for this schedule")
	}

	placements, err := s.placements.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entries")
	}
	universe, err := s.resources.Universe(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	solution := models.ScheduleSolution{ScheduleID: scheduleID, Placements: placements, Universe: universe}
	if err := solution.CheckIDs(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule entries are inconsistent")
	}

	iterations, duration := req.Budget(s.cfg.MaxIterations, s.cfg.MaxDuration)
	seed := s.cfg.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	run := newOptimizationRun(s.newID(), solution, Budget{MaxIterations: iterations, MaxDuration: duration}, seed, s.now().UTC())
	if err := s.registry.register(run); err != nil {
		return nil, err
	}
	runID := run.runID()
	if err := s.queue.TryEnqueue(jobs.Job{ID: runID, Type: OptimizeJobType, Payload: scheduleID}); err != nil {
		s.registry.remove(scheduleID, runID)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "optimizer is busy, try again later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue optimization")
	}

	s.logger.Sugar().Infow("optimization queued",
		"run_id", runID,
		"schedule_id", scheduleID,
		"placements", len(placements),
		"max_iterations", iterations,
		"max_duration", duration,
		"seed", seed,
	)
	return &dto.StartOptimizationResponse{RunID: runID, ScheduleID: scheduleID, Status: models.OptimizationStatusRunning}, nil
}

// PollOptimization returns the run state and its best placements so far.
func (s *OptimizationService) PollOptimization(ctx context.Context, scheduleID string) (*dto.OptimizationPollResponse, error) {
	run, ok := s.registry.get(scheduleID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no optimization run for this schedule")
	}
	return pollResponse(run), nil
}

// CancelOptimization asks an active run to stop. Cancelling a finished run changes nothing.
func (s *OptimizationService) CancelOptimization(ctx context.Context, scheduleID string) (*dto.OptimizationPollResponse, error) {
	run, ok := s.registry.get(scheduleID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no optimization run for this schedule")
	}
	if !run.finished() {
		run.cancel()
		s.logger.Sugar().Infow("optimization cancel requested", "run_id", run.runID(), "schedule_id", scheduleID)
	}
	return pollResponse(run), nil
}

// ApplyOptimization writes the best placements of a completed run back to the schedule.
func (s *OptimizationService) ApplyOptimization(ctx context.Context, scheduleID string, req dto.ApplyOptimizationRequest) (resp *dto.ApplyOptimizationResponse, err error) {
	run, ok := s.registry.get(scheduleID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no optimization run for this schedule")
	}
	snapshot, placements, breakdown := run.view()
	switch snapshot.Status {
	case models.OptimizationStatusRunning:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "optimization run is still running")
	case models.OptimizationStatusFailed:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("optimization run failed: %s", snapshot.Reason))
	}
	score := breakdown.Score()
	if !score.Feasible() && !req.AllowInfeasible {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("optimized schedule still breaks %d hard constraint(s)", breakdown.HardViolations()))
	}

	current, err := s.placements.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entries")
	}
	if !samePlacements(current, run.input.Placements) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "schedule changed after the optimization started")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.placements.ReplaceForSchedule(ctx, tx, scheduleID, placements); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace schedule entries")
	}
	if err = s.schedules.Touch(ctx, tx, scheduleID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit optimized schedule")
	}

	s.resources.Invalidate(ctx, scheduleID)
	s.registry.remove(scheduleID, snapshot.RunID)
	event := events.Event{
		Type:       events.ScheduleModified,
		ScheduleID: scheduleID,
		Payload:    map[string]interface{}{"run_id": snapshot.RunID, "score": score},
	}
	if pubErr := s.publisher.Publish(ctx, event); pubErr != nil {
		s.logger.Warn("schedule event not delivered", zap.String("type", event.Type), zap.String("schedule_id", scheduleID), zap.Error(pubErr))
	}

	s.logger.Sugar().Infow("optimization applied", "run_id", snapshot.RunID, "schedule_id", scheduleID, "entries", len(placements), "score", score.String())
	return &dto.ApplyOptimizationResponse{
		ScheduleID: scheduleID,
		RunID:      snapshot.RunID,
		Applied:    len(placements),
		Score:      score,
	}, nil
}

func pollResponse(run *optimizationRun) *dto.OptimizationPollResponse {
	snapshot, placements, breakdown := run.view()
	if placements == nil {
		placements = []models.Placement{}
	}
	return &dto.OptimizationPollResponse{
		OptimizationRun: snapshot,
		Breakdown:       breakdown,
		Feasible:        breakdown.Score().Feasible(),
		Placements:      placements,
	}
}

// samePlacements compares two snapshots by id, ignoring order and timestamps.
func samePlacements(a, b []models.Placement) bool {
	if len(a) != len(b) {
		return false
	}
	index := make(map[string]models.Placement, len(a))
	for _, p := range a {
		index[p.ID] = p
	}
	for _, p := range b {
		other, ok := index[p.ID]
		if !ok || other.LessonRequirement != p.LessonRequirement || other.Classroom() != p.Classroom() {
			return false
		}
		switch {
		case other.Slot == nil && p.Slot == nil:
		case other.Slot == nil || p.Slot == nil || *other.Slot != *p.Slot:
			return false
		}
	}
	return true
}
