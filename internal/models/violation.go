package models

// ViolationType enumerates the hard constraints checked for a single placement.
type ViolationType string

const (
	ViolationTeacherConflict    ViolationType = "TEACHER_CONFLICT"
	ViolationClassroomConflict  ViolationType = "CLASSROOM_CONFLICT"
	ViolationClassConflict      ViolationType = "CLASS_CONFLICT"
	ViolationTeacherUnavailable ViolationType = "TEACHER_UNAVAILABLE"
)

// Violation describes one broken constraint and the existing placements involved.
type Violation struct {
	Type      ViolationType `json:"type"`
	Message   string        `json:"message"`
	Conflicts []Placement   `json:"conflicts"`
}

// ValidationResult is the outcome of validating a candidate placement.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// Has reports whether a violation of the given type is present.
func (r ValidationResult) Has(t ViolationType) bool {
	for _, v := range r.Violations {
		if v.Type == t {
			return true
		}
	}
	return false
}

// Count returns how many violations of the given type were reported.
func (r ValidationResult) Count(t ViolationType) int {
	count := 0
	for _, v := range r.Violations {
		if v.Type == t {
			count++
		}
	}
	return count
}

// ScheduleConflictError is returned when a write would leave the schedule with conflicts.
type ScheduleConflictError struct {
	Message    string      `json:"message"`
	Violations []Violation `json:"violations"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
