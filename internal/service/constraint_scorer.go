package service

import (
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// maxPenalizedGapMinutes is the widest idle gap between two lessons of a teacher that still costs soft score.
const maxPenalizedGapMinutes = 120

// ScoreSolution computes the two-tier score of a whole solution.
func ScoreSolution(solution models.ScheduleSolution) models.Score {
	return ScoreBreakdownOf(solution).Score()
}

// ScoreBreakdownOf visits every placement once and every unordered pair once, in placement order.
func ScoreBreakdownOf(solution models.ScheduleSolution) models.ScoreBreakdown {
	placements := solution.Placements
	availability := solution.Universe.Availability

	var total models.ScoreBreakdown
	for i := range placements {
		total = total.Add(placementTerms(placements[i], availability))
		for j := i + 1; j < len(placements); j++ {
			total = total.Add(pairTerms(placements[i], placements[j]))
		}
	}
	return total
}

// placementTerms covers the constraints that concern a single placement.
func placementTerms(p models.Placement, availability models.TeacherAvailability) models.ScoreBreakdown {
	var b models.ScoreBreakdown
	if TeacherUnavailable(p, availability) {
		b.TeacherUnavailable = 1
	}
	if p.HasClassroom() {
		b.ClassroomRewards = 1
	}
	return b
}

// pairTerms is symmetric in its arguments.
func pairTerms(a, b models.Placement) models.ScoreBreakdown {
	var out models.ScoreBreakdown
	if TeacherClash(a, b) {
		out.TeacherConflicts = 1
	}
	if ClassroomClash(a, b) {
		out.ClassroomConflicts = 1
	}
	if ClassClash(a, b) {
		out.ClassConflicts = 1
	}
	if out.HardViolations() > 0 {
		return out
	}
	if gap, ok := teacherGap(a, b); ok && gap >= 1 && gap <= maxPenalizedGapMinutes {
		out.IdleMinutes = gap
	}
	return out
}

// teacherGap returns the idle minutes between two non-overlapping lessons of the same teacher on the same day.
func teacherGap(a, b models.Placement) (int, bool) {
	if a.TeacherID != b.TeacherID || a.Slot == nil || b.Slot == nil {
		return 0, false
	}
	if a.Slot.DayOfWeek != b.Slot.DayOfWeek || a.Slot.Overlaps(*b.Slot) {
		return 0, false
	}
	earlier, later := a.Slot, b.Slot
	if later.Start < earlier.Start {
		earlier, later = later, earlier
	}
	return int(later.Start - earlier.End), true
}

// scoreTracker keeps a running breakdown for a placement arena so a single-placement move
// only rescans the pairs that involve the moved placement.
type scoreTracker struct {
	placements   []models.Placement
	availability models.TeacherAvailability
	total        models.ScoreBreakdown
}

func newScoreTracker(solution models.ScheduleSolution) *scoreTracker {
	return &scoreTracker{
		placements:   solution.Placements,
		availability: solution.Universe.Availability,
		total:        ScoreBreakdownOf(solution),
	}
}

func (t *scoreTracker) Score() models.Score {
	return t.total.Score()
}

func (t *scoreTracker) Breakdown() models.ScoreBreakdown {
	return t.total
}

// contribution is everything in the total that depends on placement k.
func (t *scoreTracker) contribution(k int) models.ScoreBreakdown {
	moved := t.placements[k]
	b := placementTerms(moved, t.availability)
	for j := range t.placements {
		if j == k {
			continue
		}
		b = b.Add(pairTerms(moved, t.placements[j]))
	}
	return b
}

// Move replaces placement k and returns the new score.
func (t *scoreTracker) Move(k int, next models.Placement) models.Score {
	before := t.contribution(k)
	t.placements[k] = next
	after := t.contribution(k)
	t.total = t.total.Sub(before).Add(after)
	return t.total.Score()
}

// Restore puts back a previous placement and the total recorded before the move.
func (t *scoreTracker) Restore(k int, previous models.Placement, total models.ScoreBreakdown) {
	t.placements[k] = previous
	t.total = total
}
