package dto

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// RegisterValidations installs the custom tags used by timetable requests.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := models.ParseClock(fl.Field().String())
		return err == nil
	})
}

// TimeSlotRequest is a day plus HH:MM bounds.
type TimeSlotRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"required,min=1,max=7"`
	Start     string `json:"start" validate:"required,clock"`
	End       string `json:"end" validate:"required,clock"`
}

// ToModel parses the clock strings.
func (r TimeSlotRequest) ToModel() (models.TimeSlot, error) {
	start, err := models.ParseClock(r.Start)
	if err != nil {
		return models.TimeSlot{}, err
	}
	end, err := models.ParseClock(r.End)
	if err != nil {
		return models.TimeSlot{}, err
	}
	return models.TimeSlot{DayOfWeek: r.DayOfWeek, Start: start, End: end}, nil
}

// EntryRequest creates, replaces or validates a schedule entry. Classroom and slot are optional here
// so that their absence is reported as an invalid reference rather than a malformed body.
type EntryRequest struct {
	ClassID     string           `json:"class_id" validate:"required"`
	SubjectID   string           `json:"subject_id" validate:"required"`
	TeacherID   string           `json:"teacher_id" validate:"required"`
	ClassroomID string           `json:"classroom_id" validate:"omitempty,max=64"`
	TimeSlot    *TimeSlotRequest `json:"time_slot"`
}

// ToPlacement converts the request into a placement of the schedule.
func (r EntryRequest) ToPlacement(scheduleID, entryID string) (models.Placement, error) {
	placement := models.Placement{
		ID:         entryID,
		ScheduleID: scheduleID,
		LessonRequirement: models.LessonRequirement{
			ClassID:   r.ClassID,
			SubjectID: r.SubjectID,
			TeacherID: r.TeacherID,
		},
	}
	if r.ClassroomID != "" {
		placement.ClassroomID = models.StringPtr(r.ClassroomID)
	}
	if r.TimeSlot != nil {
		slot, err := r.TimeSlot.ToModel()
		if err != nil {
			return models.Placement{}, err
		}
		placement.Slot = &slot
	}
	return placement, nil
}

// ScoreResponse reports the current quality of a schedule.
type ScoreResponse struct {
	ScheduleID string                `json:"schedule_id"`
	Score      models.Score          `json:"score"`
	Breakdown  models.ScoreBreakdown `json:"breakdown"`
	Feasible   bool                  `json:"feasible"`
	Entries    int                   `json:"entries"`
}

// StartOptimizationRequest optionally overrides the configured search budget.
type StartOptimizationRequest struct {
	MaxIterations      *int   `json:"max_iterations" validate:"omitempty,min=0,max=10000000"`
	MaxDurationSeconds *int   `json:"max_duration_seconds" validate:"omitempty,min=0,max=3600"`
	Seed               *int64 `json:"seed"`
}

// Budget resolves the overrides against defaults.
func (r StartOptimizationRequest) Budget(defaultIterations int, defaultDuration time.Duration) (int, time.Duration) {
	iterations, duration := defaultIterations, defaultDuration
	if r.MaxIterations != nil {
		iterations = *r.MaxIterations
	}
	if r.MaxDurationSeconds != nil {
		duration = time.Duration(*r.MaxDurationSeconds) * time.Second
	}
	return iterations, duration
}

// StartOptimizationResponse is returned as soon as a run has been queued.
type StartOptimizationResponse struct {
	RunID      string                    `json:"run_id"`
	ScheduleID string                    `json:"schedule_id"`
	Status     models.OptimizationStatus `json:"status"`
}

// OptimizationPollResponse exposes the state of a run and its best placements so far.
type OptimizationPollResponse struct {
	models.OptimizationRun
	Breakdown  models.ScoreBreakdown `json:"breakdown"`
	Feasible   bool                  `json:"feasible"`
	Placements []models.Placement    `json:"placements"`
}

// ApplyOptimizationRequest controls how a finished run is written back.
type ApplyOptimizationRequest struct {
	AllowInfeasible bool `json:"allow_infeasible"`
}

// ApplyOptimizationResponse summarises an applied run.
type ApplyOptimizationResponse struct {
	ScheduleID string       `json:"schedule_id"`
	RunID      string       `json:"run_id"`
	Applied    int          `json:"applied"`
	Score      models.Score `json:"score"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
