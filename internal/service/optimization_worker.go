package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// OptimizeJobType tags optimizer jobs on the queue.
const OptimizeJobType = "timetable.optimize"

// OptimizationWorker bridges queue jobs to the optimizer. Job.ID is the run id and Job.Payload the schedule id.
type OptimizationWorker struct {
	registry      *RunRegistry
	publisher     schedulePublisher
	metrics       *MetricsService
	progressEvery int
	logger        *zap.Logger
	now           func() time.Time
}

// NewOptimizationWorker constructs a worker.
func NewOptimizationWorker(registry *RunRegistry, publisher schedulePublisher, metrics *MetricsService, progressEvery int, logger *zap.Logger) *OptimizationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OptimizationWorker{
		registry:      registry,
		publisher:     publisher,
		metrics:       metrics,
		progressEvery: progressEvery,
		logger:        logger,
		now:           time.Now,
	}
}

// Handle runs one optimization to completion. Failures are recorded on the run and never retried.
func (w *OptimizationWorker) Handle(ctx context.Context, job jobs.Job) error {
	scheduleID, _ := job.Payload.(string)
	run, ok := w.registry.get(scheduleID)
	if !ok || run.runID() != job.ID {
		w.logger.Sugar().Warnw("stale optimization job dropped", "job_id", job.ID, "schedule_id", scheduleID)
		return nil
	}
	if run.finished() {
		return nil
	}

	stop := context.AfterFunc(ctx, run.cancel)
	defer stop()

	w.metrics.OptimizationStarted()
	w.logger.Sugar().Infow("optimization started",
		"run_id", job.ID,
		"schedule_id", scheduleID,
		"placements", len(run.input.Placements),
		"max_iterations", run.budget.MaxIterations,
		"max_duration", run.budget.MaxDuration,
	)

	optimizer := NewOptimizer(OptimizerOptions{Seed: run.seed, ProgressEvery: w.progressEvery, Logger: w.logger})
	result, err := optimizer.Optimize(run.ctx, run.input, run.budget, run.progress)

	status := models.OptimizationStatusCompleted
	reason := ""
	if err != nil {
		status = models.OptimizationStatusFailed
		reason = err.Error()
	}
	run.finish(status, reason, result, w.now().UTC())
	w.metrics.OptimizationFinished(status, result)

	fields := []interface{}{"run_id", job.ID, "schedule_id", scheduleID, "status", status}
	if result != nil {
		fields = append(fields,
			"iterations", result.Iterations,
			"initial", result.InitialScore.String(),
			"best", result.Score.String(),
			"cancelled", result.Cancelled,
			"elapsed", result.Elapsed,
		)
	}
	if err != nil {
		w.logger.Sugar().Warnw("optimization failed", append(fields, "error", err)...)
		return nil
	}
	w.logger.Sugar().Infow("optimization finished", fields...)

	event := events.Event{
		Type:       events.ScheduleOptimized,
		ScheduleID: scheduleID,
		Payload:    map[string]interface{}{"run_id": job.ID, "score": result.Score, "cancelled": result.Cancelled},
	}
	if pubErr := w.publisher.Publish(context.Background(), event); pubErr != nil {
		w.logger.Warn("schedule event not delivered", zap.String("type", event.Type), zap.String("schedule_id", scheduleID), zap.Error(pubErr))
	}
	return nil
}
