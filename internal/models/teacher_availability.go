package models

import "time"

// TeacherAvailabilityWindow is an interval on a day of the week during which a teacher may be scheduled.
type TeacherAvailabilityWindow struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	Start     ClockTime `db:"start_minute" json:"start"`
	End       ClockTime `db:"end_minute" json:"end"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Slot returns the window as a TimeSlot.
func (w TeacherAvailabilityWindow) Slot() TimeSlot {
	return TimeSlot{DayOfWeek: w.DayOfWeek, Start: w.Start, End: w.End}
}

// TeacherAvailability indexes windows by teacher. A teacher present with no windows is known but never available.
type TeacherAvailability map[string][]TeacherAvailabilityWindow

// NewTeacherAvailability registers every teacher id and attaches the given windows.
func NewTeacherAvailability(teacherIDs []string, windows []TeacherAvailabilityWindow) TeacherAvailability {
	result := make(TeacherAvailability, len(teacherIDs))
	for _, id := range teacherIDs {
		if _, ok := result[id]; !ok {
			result[id] = nil
		}
	}
	for _, window := range windows {
		result[window.TeacherID] = append(result[window.TeacherID], window)
	}
	return result
}

// Knows reports whether the teacher is registered.
func (a TeacherAvailability) Knows(teacherID string) bool {
	_, ok := a[teacherID]
	return ok
}

// IsAvailable reports whether some window of the teacher fully contains the slot.
func (a TeacherAvailability) IsAvailable(teacherID string, slot TimeSlot) bool {
	for _, window := range a[teacherID] {
		if window.Slot().Contains(slot) {
			return true
		}
	}
	return false
}
