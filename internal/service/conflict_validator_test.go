package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestValidatePlacementOverlappingTeacher(t *testing.T) {
	availability := weekdayAvailability("t1")
	existing := []models.Placement{mkPlacement("a", "c1", "t1", "r1", mkSlotPtr(1, "09:00", "10:00"))}
	candidate := mkPlacement("b", "c2", "t1", "r2", mkSlotPtr(1, "09:30", "10:30"))

	result := ValidatePlacement(candidate, existing, availability)

	assert.False(t, result.Valid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, models.ViolationTeacherConflict, result.Violations[0].Type)
	require.Len(t, result.Violations[0].Conflicts, 1)
	assert.Equal(t, "a", result.Violations[0].Conflicts[0].ID)
}

func TestValidatePlacementBackToBackIsValid(t *testing.T) {
	availability := weekdayAvailability("t1")
	existing := []models.Placement{mkPlacement("a", "c1", "t1", "r1", mkSlotPtr(1, "09:00", "10:00"))}
	candidate := mkPlacement("b", "c1", "t1", "r1", mkSlotPtr(1, "10:00", "11:00"))

	result := ValidatePlacement(candidate, existing, availability)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
}

func TestValidatePlacementOutsideAvailability(t *testing.T) {
	availability := models.NewTeacherAvailability([]string{"t1"}, []models.TeacherAvailabilityWindow{
		window("t1", 4, "08:00", "16:00"),
	})
	candidate := mkPlacement("a", "c1", "t1", "r1", mkSlotPtr(4, "17:00", "18:00"))

	result := ValidatePlacement(candidate, nil, availability)

	assert.False(t, result.Valid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, models.ViolationTeacherUnavailable, result.Violations[0].Type)
	assert.NotNil(t, result.Violations[0].Conflicts)
	assert.Empty(t, result.Violations[0].Conflicts)
}

func TestValidatePlacementAvailabilityNeedsSingleWindow(t *testing.T) {
	availability := models.NewTeacherAvailability([]string{"t1"}, []models.TeacherAvailabilityWindow{
		window("t1", 2, "08:00", "09:00"),
		window("t1", 2, "09:00", "10:00"),
	})
	inside := mkPlacement("a", "c1", "t1", "", mkSlotPtr(2, "09:00", "10:00"))
	spanning := mkPlacement("b", "c1", "t1", "", mkSlotPtr(2, "08:30", "09:30"))

	assert.True(t, ValidatePlacement(inside, nil, availability).Valid)
	assert.True(t, ValidatePlacement(spanning, nil, availability).Has(models.ViolationTeacherUnavailable))
}

func TestValidatePlacementReportsEachConflictTypeOnce(t *testing.T) {
	availability := weekdayAvailability("t1", "t2", "t3", "t4")
	existing := []models.Placement{
		mkPlacement("same-teacher", "c2", "t1", "r2", mkSlotPtr(1, "09:00", "10:00")),
		mkPlacement("same-room", "c3", "t2", "r1", mkSlotPtr(1, "09:15", "09:45")),
		mkPlacement("same-class", "c1", "t3", "r3", mkSlotPtr(1, "08:30", "09:30")),
		mkPlacement("elsewhere", "c1", "t1", "r1", mkSlotPtr(2, "09:00", "10:00")),
	}
	candidate := mkPlacement("new", "c1", "t1", "r1", mkSlotPtr(1, "09:00", "10:00"))

	result := ValidatePlacement(candidate, existing, availability)

	require.Len(t, result.Violations, 3)
	assert.Equal(t, 1, result.Count(models.ViolationTeacherConflict))
	assert.Equal(t, 1, result.Count(models.ViolationClassroomConflict))
	assert.Equal(t, 1, result.Count(models.ViolationClassConflict))
	assert.Equal(t, 0, result.Count(models.ViolationTeacherUnavailable))

	byType := map[models.ViolationType]string{}
	for _, v := range result.Violations {
		require.Len(t, v.Conflicts, 1)
		byType[v.Type] = v.Conflicts[0].ID
	}
	assert.Equal(t, "same-teacher", byType[models.ViolationTeacherConflict])
	assert.Equal(t, "same-room", byType[models.ViolationClassroomConflict])
	assert.Equal(t, "same-class", byType[models.ViolationClassConflict])
}

func TestValidatePlacementGroupsMultipleConflictsOfOneType(t *testing.T) {
	availability := weekdayAvailability("t1", "t2", "t3")
	existing := []models.Placement{
		mkPlacement("a", "c2", "t1", "", mkSlotPtr(3, "10:00", "11:00")),
		mkPlacement("b", "c3", "t1", "", mkSlotPtr(3, "10:30", "11:30")),
	}
	candidate := mkPlacement("new", "c1", "t1", "", mkSlotPtr(3, "10:15", "11:15"))

	result := ValidatePlacement(candidate, existing, availability)

	require.Len(t, result.Violations, 1)
	assert.Len(t, result.Violations[0].Conflicts, 2)
}

func TestValidatePlacementUnassignedClassroomNeverConflicts(t *testing.T) {
	availability := weekdayAvailability("t1", "t2")
	existing := []models.Placement{mkPlacement("a", "c2", "t2", "", mkSlotPtr(1, "09:00", "10:00"))}
	candidate := mkPlacement("b", "c1", "t1", "", mkSlotPtr(1, "09:00", "10:00"))

	assert.True(t, ValidatePlacement(candidate, existing, availability).Valid)
}

func TestValidatePlacementIsIdempotent(t *testing.T) {
	availability := weekdayAvailability("t1", "t2")
	existing := []models.Placement{
		mkPlacement("a", "c1", "t1", "r1", mkSlotPtr(1, "09:00", "10:00")),
		mkPlacement("b", "c2", "t2", "r1", mkSlotPtr(1, "09:30", "10:30")),
	}
	snapshot := models.ClonePlacements(existing)
	candidate := mkPlacement("c", "c1", "t2", "r1", mkSlotPtr(1, "09:45", "10:15"))

	first := ValidatePlacement(candidate, existing, availability)
	second := ValidatePlacement(candidate, existing, availability)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, existing)
}

func TestValidatePlacementConflictsAreCopies(t *testing.T) {
	availability := weekdayAvailability("t1")
	existing := []models.Placement{mkPlacement("a", "c1", "t1", "r1", mkSlotPtr(1, "09:00", "10:00"))}
	candidate := mkPlacement("b", "c2", "t1", "r2", mkSlotPtr(1, "09:00", "10:00"))

	result := ValidatePlacement(candidate, existing, availability)
	require.Len(t, result.Violations, 1)
	result.Violations[0].Conflicts[0].Slot.DayOfWeek = 5

	assert.Equal(t, 1, existing[0].Slot.DayOfWeek)
}
