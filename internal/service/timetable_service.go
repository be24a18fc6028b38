package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
)

type placementStore interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Placement, error)
	FindByID(ctx context.Context, scheduleID, id string) (*models.Placement, error)
	Create(ctx context.Context, placement *models.Placement) error
	Update(ctx context.Context, placement *models.Placement) error
	Delete(ctx context.Context, scheduleID, id string) error
}

type universeProvider interface {
	EnsureSchedule(ctx context.Context, scheduleID string) (*models.Schedule, error)
	Universe(ctx context.Context, scheduleID string) (models.ResourceUniverse, error)
}

type schedulePublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type runGuard interface {
	IsActive(scheduleID string) bool
}

// TimetableService handles single-entry reads and writes guarded by the conflict validator.
type TimetableService struct {
	placements placementStore
	resources  universeProvider
	publisher  schedulePublisher
	runs       runGuard
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTimetableService constructs the service. publisher, runs and metrics are optional.
func NewTimetableService(
	placements placementStore,
	resources universeProvider,
	publisher schedulePublisher,
	runs runGuard,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
		_ = dto.RegisterValidations(validate)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TimetableService{
		placements: placements,
		resources:  resources,
		publisher:  publisher,
		runs:       runs,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// ValidateEntry checks a candidate against the committed placements of the schedule.
// A candidate with an id is treated as an update and its stored version is left out.
// Conflicts come back in the result; only bad references and storage failures are errors.
func (s *TimetableService) ValidateEntry(ctx context.Context, candidate models.Placement, scheduleID string) (*models.ValidationResult, error) {
	if _, err := s.resources.EnsureSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	universe, err := s.resources.Universe(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if err := checkReferences(candidate, universe); err != nil {
		return nil, err
	}

	existing, err := s.placements.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entries")
	}
	if candidate.ID != "" {
		existing = withoutPlacement(existing, candidate.ID)
	}

	result := ValidatePlacement(candidate, existing, universe.Availability)
	s.metrics.RecordValidation(result)
	return &result, nil
}

// ValidateRequest validates an entry body without persisting it.
func (s *TimetableService) ValidateRequest(ctx context.Context, scheduleID string, req dto.EntryRequest) (*models.ValidationResult, error) {
	candidate, err := s.placementFromRequest(scheduleID, "", req)
	if err != nil {
		return nil, err
	}
	return s.ValidateEntry(ctx, candidate, scheduleID)
}

// ListEntries returns the placements of a schedule.
func (s *TimetableService) ListEntries(ctx context.Context, scheduleID string) ([]models.Placement, error) {
	if _, err := s.resources.EnsureSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	placements, err := s.placements.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule entries")
	}
	return placements, nil
}

// CreateEntry validates and stores a new placement.
func (s *TimetableService) CreateEntry(ctx context.Context, scheduleID string, req dto.EntryRequest) (*models.Placement, error) {
	if err := s.ensureEditable(scheduleID); err != nil {
		return nil, err
	}
	candidate, err := s.placementFromRequest(scheduleID, "", req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, candidate, scheduleID); err != nil {
		return nil, err
	}
	if err := s.placements.Create(ctx, &candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule entry")
	}
	s.publish(ctx, events.ScheduleCreated, scheduleID, candidate.ID)
	return &candidate, nil
}

// UpdateEntry replaces an existing placement after validating it without its previous state.
func (s *TimetableService) UpdateEntry(ctx context.Context, scheduleID, entryID string, req dto.EntryRequest) (*models.Placement, error) {
	if err := s.ensureEditable(scheduleID); err != nil {
		return nil, err
	}
	current, err := s.placements.FindByID(ctx, scheduleID, entryID)
	if err != nil {
		return nil, mapEntryError(err, "failed to load schedule entry")
	}
	candidate, err := s.placementFromRequest(scheduleID, entryID, req)
	if err != nil {
		return nil, err
	}
	candidate.CreatedAt = current.CreatedAt
	if err := s.ensureNoConflict(ctx, candidate, scheduleID); err != nil {
		return nil, err
	}
	if err := s.placements.Update(ctx, &candidate); err != nil {
		return nil, mapEntryError(err, "failed to update schedule entry")
	}
	s.publish(ctx, events.ScheduleModified, scheduleID, entryID)
	return &candidate, nil
}

// DeleteEntry removes a placement.
func (s *TimetableService) DeleteEntry(ctx context.Context, scheduleID, entryID string) error {
	if err := s.ensureEditable(scheduleID); err != nil {
		return err
	}
	if err := s.placements.Delete(ctx, scheduleID, entryID); err != nil {
		return mapEntryError(err, "failed to delete schedule entry")
	}
	s.publish(ctx, events.ScheduleDeleted, scheduleID, entryID)
	return nil
}

// ScoreSchedule scores the committed placements of a schedule.
func (s *TimetableService) ScoreSchedule(ctx context.Context, scheduleID string) (*dto.ScoreResponse, error) {
	placements, err := s.ListEntries(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	universe, err := s.resources.Universe(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	breakdown := ScoreBreakdownOf(models.ScheduleSolution{ScheduleID: scheduleID, Placements: placements, Universe: universe})
	score := breakdown.Score()
	return &dto.ScoreResponse{
		ScheduleID: scheduleID,
		Score:      score,
		Breakdown:  breakdown,
		Feasible:   score.Feasible(),
		Entries:    len(placements),
	}, nil
}

func (s *TimetableService) placementFromRequest(scheduleID, entryID string, req dto.EntryRequest) (models.Placement, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Placement{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule entry payload")
	}
	placement, err := req.ToPlacement(scheduleID, entryID)
	if err != nil {
		return models.Placement{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot")
	}
	return placement, nil
}

func (s *TimetableService) ensureEditable(scheduleID string) error {
	if s.runs != nil && s.runs.IsActive(scheduleID) {
		return appErrors.Clone(appErrors.ErrConflict, "schedule is being optimized")
	}
	return nil
}

func (s *TimetableService) ensureNoConflict(ctx context.Context, candidate models.Placement, scheduleID string) error {
	result, err := s.ValidateEntry(ctx, candidate, scheduleID)
	if err != nil {
		return err
	}
	if !result.Valid {
		return &models.ScheduleConflictError{
			Message:    fmt.Sprintf("entry violates %d constraint(s)", len(result.Violations)),
			Violations: result.Violations,
		}
	}
	return nil
}

func (s *TimetableService) publish(ctx context.Context, eventType, scheduleID, entryID string) {
	if err := s.publisher.Publish(ctx, events.Event{Type: eventType, ScheduleID: scheduleID, EntryID: entryID}); err != nil {
		s.logger.Warn("schedule event not delivered", zap.String("type", eventType), zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}

// checkReferences rejects candidates that point at resources outside the universe.
func checkReferences(candidate models.Placement, universe models.ResourceUniverse) error {
	switch {
	case !candidate.HasClassroom():
		return appErrors.Clone(appErrors.ErrInvalidReference, "classroom is required")
	case candidate.Slot == nil:
		return appErrors.Clone(appErrors.ErrInvalidReference, "time slot is required")
	case !universe.HasTeacher(candidate.TeacherID):
		return appErrors.Clone(appErrors.ErrInvalidReference, fmt.Sprintf("unknown teacher %s", candidate.TeacherID))
	case !universe.HasClassroom(*candidate.ClassroomID):
		return appErrors.Clone(appErrors.ErrInvalidReference, fmt.Sprintf("unknown classroom %s", *candidate.ClassroomID))
	case !candidate.Slot.Valid() || !universe.HasTimeSlot(*candidate.Slot):
		return appErrors.Clone(appErrors.ErrInvalidReference, fmt.Sprintf("time slot %s is not offered by this schedule", candidate.Slot))
	}
	return nil
}

func withoutPlacement(items []models.Placement, id string) []models.Placement {
	out := make([]models.Placement, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

func mapEntryError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "schedule entry not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
