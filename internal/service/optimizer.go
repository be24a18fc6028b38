package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ErrUnresolvableUniverse is returned when placements exist but there is neither a classroom nor a time slot to move them to.
var ErrUnresolvableUniverse = errors.New("resource universe has no classrooms and no time slots")

const defaultProgressEvery = 500

// Budget bounds a search. MaxIterations of zero performs no move. A negative MaxIterations removes the
// iteration cap and a zero MaxDuration removes the time cap.
type Budget struct {
	MaxIterations int
	MaxDuration   time.Duration
}

// OptimizationProgress is reported periodically while a search runs.
type OptimizationProgress struct {
	Iterations   int
	Accepted     int
	Improvements int
	Current      models.Score
	Best         models.Score
	Breakdown    models.ScoreBreakdown
	Placements   []models.Placement
}

// OptimizationResult is the outcome of a search. Solution always holds the best placements found.
type OptimizationResult struct {
	Solution     models.ScheduleSolution
	InitialScore models.Score
	Score        models.Score
	Breakdown    models.ScoreBreakdown
	Iterations   int
	Accepted     int
	Improvements int
	Cancelled    bool
	Elapsed      time.Duration
}

// OptimizerOptions configures the local search.
type OptimizerOptions struct {
	Seed          int64
	ProgressEvery int
	Logger        *zap.Logger
}

// Optimizer improves a schedule by reassigning the classroom and time slot of one placement at a time.
type Optimizer struct {
	seed          int64
	progressEvery int
	logger        *zap.Logger
	now           func() time.Time
}

// NewOptimizer constructs an optimizer. Identical seeds and inputs replay identical searches when no time cap binds.
func NewOptimizer(opts OptimizerOptions) *Optimizer {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Optimizer{
		seed:          opts.Seed,
		progressEvery: opts.ProgressEvery,
		logger:        opts.Logger,
		now:           time.Now,
	}
}

type moveKind int

const (
	moveClassroom moveKind = iota
	moveTimeSlot
	moveBoth
)

// Optimize runs the search on a private copy of solution. Moves with a score >= the working score are
// kept, so lateral moves are taken; best is only replaced on a strictly better score. The context is
// checked every iteration for cooperative cancellation.
func (o *Optimizer) Optimize(ctx context.Context, solution models.ScheduleSolution, budget Budget, progress func(OptimizationProgress)) (*OptimizationResult, error) {
	started := o.now()
	working := solution.Clone()
	tracker := newScoreTracker(working)
	initial := tracker.Score()

	result := &OptimizationResult{
		Solution:     solution.Clone(),
		InitialScore: initial,
		Score:        initial,
		Breakdown:    tracker.Breakdown(),
	}
	finish := func() *OptimizationResult {
		result.Elapsed = o.now().Sub(started)
		if progress != nil {
			progress(OptimizationProgress{
				Iterations:   result.Iterations,
				Accepted:     result.Accepted,
				Improvements: result.Improvements,
				Current:      tracker.Score(),
				Best:         result.Score,
				Breakdown:    result.Breakdown,
				Placements:   models.ClonePlacements(result.Solution.Placements),
			})
		}
		return result
	}

	if budget.MaxIterations == 0 || len(working.Placements) == 0 {
		return finish(), nil
	}

	kinds := availableMoves(working.Universe)
	if len(kinds) == 0 {
		o.logger.Warn("optimizer cannot move placements", zap.String("schedule_id", solution.ScheduleID), zap.Int("placements", len(working.Placements)))
		return finish(), ErrUnresolvableUniverse
	}

	var deadline time.Time
	if budget.MaxDuration > 0 {
		deadline = started.Add(budget.MaxDuration)
	}

	rng := rand.New(rand.NewSource(o.seed))
	current := initial
	universe := working.Universe

	for budget.MaxIterations < 0 || result.Iterations < budget.MaxIterations {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		if !deadline.IsZero() && !o.now().Before(deadline) {
			break
		}

		k := rng.Intn(len(working.Placements))
		previous := working.Placements[k]
		savedTotal := tracker.Breakdown()
		next := applyMove(rng, previous, kinds[rng.Intn(len(kinds))], universe)

		candidate := tracker.Move(k, next)
		result.Iterations++

		if candidate.Compare(current) >= 0 {
			current = candidate
			result.Accepted++
			if candidate.Better(result.Score) {
				result.Score = candidate
				result.Breakdown = tracker.Breakdown()
				result.Solution.Placements = models.ClonePlacements(working.Placements)
				result.Improvements++
			}
		} else {
			tracker.Restore(k, previous, savedTotal)
		}

		if progress != nil && result.Iterations%o.progressEvery == 0 {
			progress(OptimizationProgress{
				Iterations:   result.Iterations,
				Accepted:     result.Accepted,
				Improvements: result.Improvements,
				Current:      current,
				Best:         result.Score,
				Breakdown:    result.Breakdown,
				Placements:   models.ClonePlacements(result.Solution.Placements),
			})
		}
	}

	o.logger.Debug("optimizer finished",
		zap.String("schedule_id", solution.ScheduleID),
		zap.Int("iterations", result.Iterations),
		zap.Int("improvements", result.Improvements),
		zap.String("initial", initial.String()),
		zap.String("best", result.Score.String()),
		zap.Bool("cancelled", result.Cancelled),
	)
	return finish(), nil
}

func availableMoves(universe models.ResourceUniverse) []moveKind {
	hasRooms := len(universe.Classrooms) > 0
	hasSlots := len(universe.TimeSlots) > 0
	switch {
	case hasRooms && hasSlots:
		return []moveKind{moveClassroom, moveTimeSlot, moveBoth}
	case hasRooms:
		return []moveKind{moveClassroom}
	case hasSlots:
		return []moveKind{moveTimeSlot}
	default:
		return nil
	}
}

// applyMove returns a reassigned copy of p. The fixed lesson requirement is never touched.
func applyMove(rng *rand.Rand, p models.Placement, kind moveKind, universe models.ResourceUniverse) models.Placement {
	next := p
	if kind == moveClassroom || kind == moveBoth {
		room := universe.Classrooms[rng.Intn(len(universe.Classrooms))]
		next.ClassroomID = &room
	}
	if kind == moveTimeSlot || kind == moveBoth {
		slot := universe.TimeSlots[rng.Intn(len(universe.TimeSlots))]
		next.Slot = &slot
	}
	return next
}
