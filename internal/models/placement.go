package models

import (
	"fmt"
	"time"
)

// LessonRequirement is the fixed part of a placement: who teaches what to which class.
type LessonRequirement struct {
	ClassID   string `db:"class_id" json:"class_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
	TeacherID string `db:"teacher_id" json:"teacher_id"`
}

// Placement binds a lesson requirement to a classroom and a time slot.
// A nil ClassroomID or Slot means that resource has not been assigned yet.
type Placement struct {
	ID         string `json:"id"`
	ScheduleID string `json:"schedule_id"`
	LessonRequirement
	ClassroomID *string   `json:"classroom_id,omitempty"`
	Slot        *TimeSlot `json:"time_slot,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasSlot reports whether a time slot is assigned.
func (p Placement) HasSlot() bool {
	return p.Slot != nil
}

// HasClassroom reports whether a non-empty classroom is assigned.
func (p Placement) HasClassroom() bool {
	return p.ClassroomID != nil && *p.ClassroomID != ""
}

// Classroom returns the classroom id or an empty string.
func (p Placement) Classroom() string {
	if p.ClassroomID == nil {
		return ""
	}
	return *p.ClassroomID
}

// Clone returns a copy that shares no pointers with p.
func (p Placement) Clone() Placement {
	clone := p
	if p.ClassroomID != nil {
		room := *p.ClassroomID
		clone.ClassroomID = &room
	}
	if p.Slot != nil {
		slot := *p.Slot
		clone.Slot = &slot
	}
	return clone
}

func (p Placement) String() string {
	slot := "unassigned"
	if p.Slot != nil {
		slot = p.Slot.String()
	}
	room := p.Classroom()
	if room == "" {
		room = "-"
	}
	return fmt.Sprintf("%s[class=%s subject=%s teacher=%s room=%s %s]", p.ID, p.ClassID, p.SubjectID, p.TeacherID, room, slot)
}

// ClonePlacements deep-copies a placement list.
func ClonePlacements(items []Placement) []Placement {
	if items == nil {
		return nil
	}
	out := make([]Placement, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// StringPtr is a helper for optional string fields.
func StringPtr(v string) *string {
	return &v
}
