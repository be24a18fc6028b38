package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func crowdedSolution() models.ScheduleSolution {
	availability := weekdayAvailability("t1", "t2", "t3")
	monday9 := mkSlot(1, "09:00", "10:00")
	placements := []models.Placement{
		mkPlacement("p1", "c1", "t1", "", &monday9),
		mkPlacement("p2", "c1", "t2", "", &monday9),
		mkPlacement("p3", "c2", "t1", "", &monday9),
		mkPlacement("p4", "c2", "t3", "", nil),
		mkPlacement("p5", "c3", "t3", "", &monday9),
		mkPlacement("p6", "c3", "t2", "", &monday9),
	}
	return models.ScheduleSolution{
		ScheduleID: "sched-1",
		Placements: placements,
		Universe: models.ResourceUniverse{
			Classrooms:   []string{"r1", "r2", "r3"},
			TimeSlots:    hourlySlots([]int{1, 2, 3}, 8, 12),
			Teachers:     []string{"t1", "t2", "t3"},
			Availability: availability,
		},
	}
}

func TestOptimizeZeroIterationsReturnsInput(t *testing.T) {
	availability := weekdayAvailability("t1", "t2", "t3")
	input := models.ScheduleSolution{
		ScheduleID: "sched-1",
		Placements: []models.Placement{
			mkPlacement("a", "c1", "t1", "r1", mkSlotPtr(1, "09:00", "10:00")),
			mkPlacement("b", "c2", "t2", "r2", mkSlotPtr(1, "09:00", "10:00")),
			mkPlacement("c", "c3", "t3", "r3", mkSlotPtr(2, "09:00", "10:00")),
		},
		Universe: models.ResourceUniverse{
			Classrooms:   []string{"r1", "r2", "r3"},
			TimeSlots:    hourlySlots([]int{1, 2}, 8, 12),
			Availability: availability,
		},
	}
	snapshot := models.ClonePlacements(input.Placements)

	result, err := NewOptimizer(OptimizerOptions{Seed: 1}).Optimize(context.Background(), input, Budget{MaxIterations: 0}, nil)

	require.NoError(t, err)
	assert.Equal(t, snapshot, result.Solution.Placements)
	assert.Equal(t, snapshot, input.Placements)
	assert.Equal(t, 0, result.Iterations)
	assert.Equal(t, result.InitialScore, result.Score)
}

func TestOptimizeNeverRegresses(t *testing.T) {
	input := crowdedSolution()
	initial := ScoreSolution(input)

	for _, iterations := range []int{1, 5, 50, 2000} {
		result, err := NewOptimizer(OptimizerOptions{Seed: 42}).Optimize(context.Background(), input, Budget{MaxIterations: iterations}, nil)
		require.NoError(t, err)
		final := ScoreSolution(result.Solution)
		assert.GreaterOrEqual(t, final.Compare(initial), 0, "iterations %d", iterations)
		assert.Equal(t, final, result.Score)
		assert.Equal(t, initial, result.InitialScore)
	}
}

func TestOptimizeReachesFeasibleSchedule(t *testing.T) {
	input := crowdedSolution()

	result, err := NewOptimizer(OptimizerOptions{Seed: 42}).Optimize(context.Background(), input, Budget{MaxIterations: 20000}, nil)

	require.NoError(t, err)
	assert.True(t, result.Score.Feasible(), "score %s", result.Score)
	assert.Equal(t, ScoreBreakdownOf(result.Solution), result.Breakdown)
	for i, p := range result.Solution.Placements {
		assert.Equal(t, input.Placements[i].ID, p.ID)
		assert.Equal(t, input.Placements[i].LessonRequirement, p.LessonRequirement)
		assert.True(t, p.HasSlot())
	}
}

func TestOptimizeIsDeterministicForSeed(t *testing.T) {
	input := crowdedSolution()

	first, err := NewOptimizer(OptimizerOptions{Seed: 99}).Optimize(context.Background(), input, Budget{MaxIterations: 500}, nil)
	require.NoError(t, err)
	second, err := NewOptimizer(OptimizerOptions{Seed: 99}).Optimize(context.Background(), input, Budget{MaxIterations: 500}, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Solution.Placements, second.Solution.Placements)
	assert.Equal(t, first.Accepted, second.Accepted)
	assert.Equal(t, first.Score, second.Score)
}

func TestOptimizeDoesNotMutateInput(t *testing.T) {
	input := crowdedSolution()
	snapshot := models.ClonePlacements(input.Placements)

	_, err := NewOptimizer(OptimizerOptions{Seed: 3}).Optimize(context.Background(), input, Budget{MaxIterations: 300}, nil)

	require.NoError(t, err)
	assert.Equal(t, snapshot, input.Placements)
}

func TestOptimizeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewOptimizer(OptimizerOptions{Seed: 1}).Optimize(ctx, crowdedSolution(), Budget{MaxIterations: -1}, nil)

	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 0, result.Iterations)
}

func TestOptimizeCancelMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := 0
	progress := func(p OptimizationProgress) {
		reports++
		if p.Iterations >= 20 {
			cancel()
		}
	}

	result, err := NewOptimizer(OptimizerOptions{Seed: 1, ProgressEvery: 10}).Optimize(ctx, crowdedSolution(), Budget{MaxIterations: -1}, progress)

	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 20, result.Iterations)
	assert.Equal(t, 3, reports)
}

func TestOptimizeRespectsDuration(t *testing.T) {
	opt := NewOptimizer(OptimizerOptions{Seed: 1})
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	calls := 0
	opt.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Millisecond)
	}

	result, err := opt.Optimize(context.Background(), crowdedSolution(), Budget{MaxIterations: -1, MaxDuration: 10 * time.Millisecond}, nil)

	require.NoError(t, err)
	assert.False(t, result.Cancelled)
	assert.Greater(t, result.Iterations, 0)
	assert.Less(t, result.Iterations, 20)
}

func TestOptimizeFailsOnEmptyUniverse(t *testing.T) {
	input := crowdedSolution()
	input.Universe.Classrooms = nil
	input.Universe.TimeSlots = nil

	result, err := NewOptimizer(OptimizerOptions{Seed: 1}).Optimize(context.Background(), input, Budget{MaxIterations: 100}, nil)

	require.ErrorIs(t, err, ErrUnresolvableUniverse)
	require.NotNil(t, result)
	assert.Equal(t, input.Placements, result.Solution.Placements)
	assert.Equal(t, ScoreSolution(input), result.Score)
}

func TestOptimizeEmptyScheduleIsNoop(t *testing.T) {
	input := models.ScheduleSolution{ScheduleID: "empty"}

	result, err := NewOptimizer(OptimizerOptions{Seed: 1}).Optimize(context.Background(), input, Budget{MaxIterations: 100}, nil)

	require.NoError(t, err)
	assert.Empty(t, result.Solution.Placements)
	assert.Equal(t, models.Score{}, result.Score)
}

func TestOptimizeReportsFinalProgress(t *testing.T) {
	var last OptimizationProgress
	_, err := NewOptimizer(OptimizerOptions{Seed: 5, ProgressEvery: 1000}).Optimize(context.Background(), crowdedSolution(), Budget{MaxIterations: 250}, func(p OptimizationProgress) {
		last = p
	})

	require.NoError(t, err)
	assert.Equal(t, 250, last.Iterations)
	assert.Len(t, last.Placements, 6)
}
