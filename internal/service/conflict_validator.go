package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SlotsOverlap reports whether both placements have slots and those slots overlap.
func SlotsOverlap(a, b models.Placement) bool {
	return a.Slot != nil && b.Slot != nil && a.Slot.Overlaps(*b.Slot)
}

// TeacherClash reports a double-booked teacher.
func TeacherClash(a, b models.Placement) bool {
	return a.TeacherID == b.TeacherID && SlotsOverlap(a, b)
}

// ClassroomClash reports a double-booked classroom. Unassigned classrooms never clash.
func ClassroomClash(a, b models.Placement) bool {
	return a.HasClassroom() && b.HasClassroom() && *a.ClassroomID == *b.ClassroomID && SlotsOverlap(a, b)
}

// ClassClash reports a class attending two lessons at once.
func ClassClash(a, b models.Placement) bool {
	return a.ClassID == b.ClassID && SlotsOverlap(a, b)
}

// TeacherUnavailable reports whether the placement falls outside every availability window of its teacher.
// A placement without a slot is never available.
func TeacherUnavailable(p models.Placement, availability models.TeacherAvailability) bool {
	if p.Slot == nil {
		return true
	}
	return !availability.IsAvailable(p.TeacherID, *p.Slot)
}

// ValidatePlacement checks candidate against the committed placements of the same schedule.
// Every check runs and each conflict type yields at most one violation listing all clashing entries.
// Callers updating an entry must drop its previous state from existing first.
func ValidatePlacement(candidate models.Placement, existing []models.Placement, availability models.TeacherAvailability) models.ValidationResult {
	var teacher, classroom, class []models.Placement
	for _, other := range existing {
		if TeacherClash(candidate, other) {
			teacher = append(teacher, other.Clone())
		}
		if ClassroomClash(candidate, other) {
			classroom = append(classroom, other.Clone())
		}
		if ClassClash(candidate, other) {
			class = append(class, other.Clone())
		}
	}

	violations := make([]models.Violation, 0)
	if len(teacher) > 0 {
		violations = append(violations, models.Violation{
			Type:      models.ViolationTeacherConflict,
			Message:   fmt.Sprintf("teacher %s is already teaching at %s (%s)", candidate.TeacherID, slotLabel(candidate), placementIDs(teacher)),
			Conflicts: teacher,
		})
	}
	if len(classroom) > 0 {
		violations = append(violations, models.Violation{
			Type:      models.ViolationClassroomConflict,
			Message:   fmt.Sprintf("classroom %s is already booked at %s (%s)", candidate.Classroom(), slotLabel(candidate), placementIDs(classroom)),
			Conflicts: classroom,
		})
	}
	if len(class) > 0 {
		violations = append(violations, models.Violation{
			Type:      models.ViolationClassConflict,
			Message:   fmt.Sprintf("class %s already has a lesson at %s (%s)", candidate.ClassID, slotLabel(candidate), placementIDs(class)),
			Conflicts: class,
		})
	}
	if TeacherUnavailable(candidate, availability) {
		violations = append(violations, models.Violation{
			Type:      models.ViolationTeacherUnavailable,
			Message:   fmt.Sprintf("teacher %s is not available at %s", candidate.TeacherID, slotLabel(candidate)),
			Conflicts: []models.Placement{},
		})
	}

	return models.ValidationResult{Valid: len(violations) == 0, Violations: violations}
}

func slotLabel(p models.Placement) string {
	if p.Slot == nil {
		return "an unassigned time slot"
	}
	return p.Slot.String()
}

func placementIDs(items []models.Placement) string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return "entries " + strings.Join(ids, ", ")
}
