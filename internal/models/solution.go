package models

import "fmt"

// ResourceUniverse is the static set of resources a schedule may draw from.
type ResourceUniverse struct {
	Classrooms   []string            `json:"classrooms"`
	TimeSlots    []TimeSlot          `json:"time_slots"`
	Teachers     []string            `json:"teachers"`
	Availability TeacherAvailability `json:"availability"`
}

// HasClassroom reports whether id is a known classroom.
func (u ResourceUniverse) HasClassroom(id string) bool {
	for _, room := range u.Classrooms {
		if room == id {
			return true
		}
	}
	return false
}

// HasTimeSlot reports whether slot is one of the legal slots. An empty slot list accepts any valid slot.
func (u ResourceUniverse) HasTimeSlot(slot TimeSlot) bool {
	if len(u.TimeSlots) == 0 {
		return slot.Valid()
	}
	for _, legal := range u.TimeSlots {
		if legal == slot {
			return true
		}
	}
	return false
}

// HasTeacher reports whether the teacher is known to the universe.
func (u ResourceUniverse) HasTeacher(id string) bool {
	if u.Availability.Knows(id) {
		return true
	}
	for _, teacher := range u.Teachers {
		if teacher == id {
			return true
		}
	}
	return false
}

// ScheduleSolution is a full set of placements plus the resources needed to evaluate them.
type ScheduleSolution struct {
	ScheduleID string           `json:"schedule_id"`
	Placements []Placement      `json:"placements"`
	Universe   ResourceUniverse `json:"-"`
}

// Clone deep-copies the placements. The universe is read-only and shared.
func (s ScheduleSolution) Clone() ScheduleSolution {
	return ScheduleSolution{
		ScheduleID: s.ScheduleID,
		Placements: ClonePlacements(s.Placements),
		Universe:   s.Universe,
	}
}

// CheckIDs returns an error when placement ids are missing or repeated.
func (s ScheduleSolution) CheckIDs() error {
	seen := make(map[string]struct{}, len(s.Placements))
	for _, p := range s.Placements {
		if p.ID == "" {
			return fmt.Errorf("placement without id in schedule %s", s.ScheduleID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate placement id %s in schedule %s", p.ID, s.ScheduleID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Score is the two-tier quality of a solution. Hard must reach zero for feasibility; higher soft is better.
type Score struct {
	Hard int `json:"hard"`
	Soft int `json:"soft"`
}

// Compare orders scores lexicographically by hard then soft. It returns -1, 0 or 1.
func (s Score) Compare(other Score) int {
	switch {
	case s.Hard != other.Hard:
		if s.Hard > other.Hard {
			return 1
		}
		return -1
	case s.Soft != other.Soft:
		if s.Soft > other.Soft {
			return 1
		}
		return -1
	default:
		return 0
	}
}

// Better reports whether s is strictly better than other.
func (s Score) Better(other Score) bool {
	return s.Compare(other) > 0
}

// Feasible reports whether no hard constraint is broken.
func (s Score) Feasible() bool {
	return s.Hard == 0
}

// Add returns the component-wise sum.
func (s Score) Add(other Score) Score {
	return Score{Hard: s.Hard + other.Hard, Soft: s.Soft + other.Soft}
}

// Sub returns the component-wise difference.
func (s Score) Sub(other Score) Score {
	return Score{Hard: s.Hard - other.Hard, Soft: s.Soft - other.Soft}
}

func (s Score) String() string {
	return fmt.Sprintf("%dhard/%dsoft", s.Hard, s.Soft)
}

// ScoreBreakdown explains where a score comes from.
type ScoreBreakdown struct {
	TeacherConflicts   int `json:"teacher_conflicts"`
	ClassroomConflicts int `json:"classroom_conflicts"`
	ClassConflicts     int `json:"class_conflicts"`
	TeacherUnavailable int `json:"teacher_unavailable"`
	IdleMinutes        int `json:"idle_minutes"`
	ClassroomRewards   int `json:"classroom_rewards"`
}

// Score folds the breakdown back into a Score.
func (b ScoreBreakdown) Score() Score {
	return Score{
		Hard: -b.HardViolations(),
		Soft: b.ClassroomRewards - b.IdleMinutes,
	}
}

// Add returns the field-wise sum of two breakdowns.
func (b ScoreBreakdown) Add(other ScoreBreakdown) ScoreBreakdown {
	return ScoreBreakdown{
		TeacherConflicts:   b.TeacherConflicts + other.TeacherConflicts,
		ClassroomConflicts: b.ClassroomConflicts + other.ClassroomConflicts,
		ClassConflicts:     b.ClassConflicts + other.ClassConflicts,
		TeacherUnavailable: b.TeacherUnavailable + other.TeacherUnavailable,
		IdleMinutes:        b.IdleMinutes + other.IdleMinutes,
		ClassroomRewards:   b.ClassroomRewards + other.ClassroomRewards,
	}
}

// Sub returns the field-wise difference of two breakdowns.
func (b ScoreBreakdown) Sub(other ScoreBreakdown) ScoreBreakdown {
	return ScoreBreakdown{
		TeacherConflicts:   b.TeacherConflicts - other.TeacherConflicts,
		ClassroomConflicts: b.ClassroomConflicts - other.ClassroomConflicts,
		ClassConflicts:     b.ClassConflicts - other.ClassConflicts,
		TeacherUnavailable: b.TeacherUnavailable - other.TeacherUnavailable,
		IdleMinutes:        b.IdleMinutes - other.IdleMinutes,
		ClassroomRewards:   b.ClassroomRewards - other.ClassroomRewards,
	}
}

// HardViolations is the number of broken hard constraints.
func (b ScoreBreakdown) HardViolations() int {
	return b.TeacherConflicts + b.ClassroomConflicts + b.ClassConflicts + b.TeacherUnavailable
}
