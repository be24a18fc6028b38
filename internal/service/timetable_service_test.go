package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
)

type placementStoreStub struct {
	items      []models.Placement
	listErr    error
	createErr  error
	updateErr  error
	deleteErr  error
	replaceErr error
	created    []models.Placement
	updated    []models.Placement
	deleted    []string
	replaced   []models.Placement
}

func (s *placementStoreStub) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Placement, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return models.ClonePlacements(s.items), nil
}

func (s *placementStoreStub) FindByID(ctx context.Context, scheduleID, id string) (*models.Placement, error) {
	for _, item := range s.items {
		if item.ID == id {
			found := item.Clone()
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *placementStoreStub) Create(ctx context.Context, placement *models.Placement) error {
	if s.createErr != nil {
		return s.createErr
	}
	if placement.ID == "" {
		placement.ID = "entry-new"
	}
	s.created = append(s.created, placement.Clone())
	return nil
}

func (s *placementStoreStub) Update(ctx context.Context, placement *models.Placement) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, placement.Clone())
	return nil
}

func (s *placementStoreStub) Delete(ctx context.Context, scheduleID, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *placementStoreStub) ReplaceForSchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string, placements []models.Placement) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaced = models.ClonePlacements(placements)
	return nil
}

type universeStub struct {
	universe    models.ResourceUniverse
	scheduleErr error
	universeErr error
	invalidated []string
}

func (u *universeStub) EnsureSchedule(ctx context.Context, scheduleID string) (*models.Schedule, error) {
	if u.scheduleErr != nil {
		return nil, u.scheduleErr
	}
	return &models.Schedule{ID: scheduleID, Name: "Semester 1"}, nil
}

func (u *universeStub) Universe(ctx context.Context, scheduleID string) (models.ResourceUniverse, error) {
	return u.universe, u.universeErr
}

func (u *universeStub) Invalidate(ctx context.Context, scheduleID string) {
	u.invalidated = append(u.invalidated, scheduleID)
}

type publisherStub struct {
	events []events.Event
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return p.err
}

type runGuardStub map[string]bool

func (g runGuardStub) IsActive(scheduleID string) bool { return g[scheduleID] }

func testUniverse() models.ResourceUniverse {
	return models.ResourceUniverse{
		Classrooms:   []string{"R1", "R2"},
		TimeSlots:    hourlySlots([]int{1, 2}, 8, 12),
		Teachers:     []string{"T1", "T2"},
		Availability: weekdayAvailability("T1", "T2"),
	}
}

func entryRequest(class, teacher, room string, day int, start, end string) dto.EntryRequest {
	return dto.EntryRequest{
		ClassID:     class,
		SubjectID:   "math",
		TeacherID:   teacher,
		ClassroomID: room,
		TimeSlot:    &dto.TimeSlotRequest{DayOfWeek: day, Start: start, End: end},
	}
}

func newTimetableFixture(items ...models.Placement) (*TimetableService, *placementStoreStub, *publisherStub, runGuardStub) {
	store := &placementStoreStub{items: items}
	publisher := &publisherStub{}
	guard := runGuardStub{}
	svc := NewTimetableService(store, &universeStub{universe: testUniverse()}, publisher, guard, nil, nil, nil)
	return svc, store, publisher, guard
}

func TestTimetableServiceValidateRequestReportsConflicts(t *testing.T) {
	existing := mkPlacement("e1", "C1", "T1", "R1", mkSlotPtr(1, "08:00", "09:00"))
	svc, _, _, _ := newTimetableFixture(existing)

	result, err := svc.ValidateRequest(context.Background(), "sched-1", entryRequest("C2", "T1", "R2", 1, "08:00", "09:00"))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, models.ViolationTeacherConflict, result.Violations[0].Type)
	require.Len(t, result.Violations[0].Conflicts, 1)
	assert.Equal(t, "e1", result.Violations[0].Conflicts[0].ID)
}

func TestTimetableServiceValidateEntryIgnoresStoredVersion(t *testing.T) {
	existing := mkPlacement("e1", "C1", "T1", "R1", mkSlotPtr(1, "08:00", "09:00"))
	svc, _, _, _ := newTimetableFixture(existing)

	moved := existing.Clone()
	moved.Slot = mkSlotPtr(1, "08:00", "09:00")
	result, err := svc.ValidateEntry(context.Background(), moved, "sched-1")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
}

func TestTimetableServiceValidateRequestRejectsUnknownReferences(t *testing.T) {
	svc, _, _, _ := newTimetableFixture()

	cases := map[string]dto.EntryRequest{
		"classroom": entryRequest("C1", "T1", "R9", 1, "08:00", "09:00"),
		"teacher":   entryRequest("C1", "T9", "R1", 1, "08:00", "09:00"),
		"slot":      entryRequest("C1", "T1", "R1", 1, "08:30", "09:30"),
		"no room":   entryRequest("C1", "T1", "", 1, "08:00", "09:00"),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateRequest(context.Background(), "sched-1", req)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrInvalidReference))
		})
	}
}

func TestTimetableServiceValidateRequestRejectsMalformedBody(t *testing.T) {
	svc, _, _, _ := newTimetableFixture()

	req := entryRequest("C1", "", "R1", 1, "08:00", "09:00")
	_, err := svc.ValidateRequest(context.Background(), "sched-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	req = entryRequest("C1", "T1", "R1", 1, "8am", "09:00")
	_, err = svc.ValidateRequest(context.Background(), "sched-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestTimetableServiceCreateEntry(t *testing.T) {
	existing := mkPlacement("e1", "C1", "T1", "R1", mkSlotPtr(1, "08:00", "09:00"))
	svc, store, publisher, _ := newTimetableFixture(existing)

	created, err := svc.CreateEntry(context.Background(), "sched-1", entryRequest("C2", "T2", "R2", 1, "08:00", "09:00"))
	require.NoError(t, err)
	assert.Equal(t, "entry-new", created.ID)
	assert.Equal(t, "sched-1", created.ScheduleID)
	require.Len(t, store.created, 1)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.ScheduleCreated, publisher.events[0].Type)
	assert.Equal(t, "entry-new", publisher.events[0].EntryID)
}

func TestTimetableServiceCreateEntryRejectsConflicts(t *testing.T) {
	existing := mkPlacement("e1", "C1", "T1", "R1", mkSlotPtr(1, "08:00", "09:00"))
	svc, store, publisher, _ := newTimetableFixture(existing)

	_, err := svc.CreateEntry(context.Background(), "sched-1", entryRequest("C1", "T1", "R1", 1, "08:00", "09:00"))
	require.Error(t, err)
	var conflictErr *models.ScheduleConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Len(t, conflictErr.Violations, 3)
	assert.Empty(t, store.created)
	assert.Empty(t, publisher.events)
}

func TestTimetableServiceRejectsEditsDuringOptimization(t *testing.T) {
	svc, store, _, guard := newTimetableFixture()
	guard["sched-1"] = true

	_, err := svc.CreateEntry(context.Background(), "sched-1", entryRequest("C1", "T1", "R1", 1, "08:00", "09:00"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	err = svc.DeleteEntry(context.Background(), "sched-1", "e1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, store.created)
	assert.Empty(t, store.deleted)
}

func TestTimetableServiceUpdateEntry(t *testing.T) {
	e1 := mkPlacement("e1", "C1", "T1", "R1", mkSlotPtr(1, "08:00", "09:00"))
	e2 := mkPlacement("e2", "C2", "T2", "R2", mkSlotPtr(1, "09:00", "10:00"))
	svc, store, publisher, _ := newTimetableFixture(e1, e2)

	updated, err := svc.UpdateEntry(context.Background(), "sched-1", "e1", entryRequest("C1", "T1", "R1", 1, "10:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, "e1", updated.ID)
	assert.Equal(t, mkSlot(1, "10:00", "11:00"), *updated.Slot)
	require.Len(t, store.updated, 1)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.ScheduleModified, publisher.events[0].Type)

	_, err = svc.UpdateEntry(context.Background(), "sched-1", "e1", entryRequest("C1", "T2", "R1", 1, "09:00", "10:00"))
	var conflictErr *models.ScheduleConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestTimetableServiceUpdateEntryNotFound(t *testing.T) {
	svc, _, _, _ := newTimetableFixture()

	_, err := svc.UpdateEntry(context.Background(), "sched-1", "missing", entryRequest("C1", "T1", "R1", 1, "08:00", "09:00"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTimetableServiceDeleteEntry(t *testing.T) {
	svc, store, publisher, _ := newTimetableFixture()

	require.NoError(t, svc.DeleteEntry(context.Background(), "sched-1", "e1"))
	assert.Equal(t, []string{"e1"}, store.deleted)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.ScheduleDeleted, publisher.events[0].Type)

	store.deleteErr = sql.ErrNoRows
	err := svc.DeleteEntry(context.Background(), "sched-1", "e1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTimetableServicePublishFailureDoesNotFailWrite(t *testing.T) {
	svc, store, publisher, _ := newTimetableFixture()
	publisher.err = errors.New("redis down")

	_, err := svc.CreateEntry(context.Background(), "sched-1", entryRequest("C1", "T1", "R1", 1, "08:00", "09:00"))
	require.NoError(t, err)
	assert.Len(t, store.created, 1)
}

func TestTimetableServiceScoreSchedule(t *testing.T) {
	e1 := mkPlacement("e1", "C1", "T1", "R1", mkSlotPtr(1, "08:00", "09:00"))
	e2 := mkPlacement("e2", "C2", "T1", "R2", mkSlotPtr(1, "08:00", "09:00"))
	svc, _, _, _ := newTimetableFixture(e1, e2)

	resp, err := svc.ScoreSchedule(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Entries)
	assert.False(t, resp.Feasible)
	assert.Equal(t, 1, resp.Breakdown.TeacherConflicts)
	assert.Equal(t, -1, resp.Score.Hard)
	assert.Equal(t, 2, resp.Score.Soft)
}

func TestTimetableServiceListEntriesWrapsStorageErrors(t *testing.T) {
	svc, store, _, _ := newTimetableFixture()
	store.listErr = errors.New("connection reset")

	_, err := svc.ListEntries(context.Background(), "sched-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
