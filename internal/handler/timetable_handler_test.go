package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableServiceMock struct {
	scheduleID string
	entryID    string
	captured   dto.EntryRequest
	result     *models.ValidationResult
	entries    []models.Placement
	entry      *models.Placement
	score      *dto.ScoreResponse
	err        error
}

func (m *timetableServiceMock) ValidateRequest(ctx context.Context, scheduleID string, req dto.EntryRequest) (*models.ValidationResult, error) {
	m.scheduleID, m.captured = scheduleID, req
	return m.result, m.err
}

func (m *timetableServiceMock) ListEntries(ctx context.Context, scheduleID string) ([]models.Placement, error) {
	m.scheduleID = scheduleID
	return m.entries, m.err
}

func (m *timetableServiceMock) CreateEntry(ctx context.Context, scheduleID string, req dto.EntryRequest) (*models.Placement, error) {
	m.scheduleID, m.captured = scheduleID, req
	return m.entry, m.err
}

func (m *timetableServiceMock) UpdateEntry(ctx context.Context, scheduleID, entryID string, req dto.EntryRequest) (*models.Placement, error) {
	m.scheduleID, m.entryID, m.captured = scheduleID, entryID, req
	return m.entry, m.err
}

func (m *timetableServiceMock) DeleteEntry(ctx context.Context, scheduleID, entryID string) error {
	m.scheduleID, m.entryID = scheduleID, entryID
	return m.err
}

func (m *timetableServiceMock) ScoreSchedule(ctx context.Context, scheduleID string) (*dto.ScoreResponse, error) {
	m.scheduleID = scheduleID
	return m.score, m.err
}

func newTimetableRouter(svc *timetableServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &TimetableHandler{service: svc}
	r := gin.New()
	r.POST("/schedules/:id/entries/validate", h.Validate)
	r.GET("/schedules/:id/entries", h.List)
	r.POST("/schedules/:id/entries", h.Create)
	r.PUT("/schedules/:id/entries/:entryId", h.Update)
	r.DELETE("/schedules/:id/entries/:entryId", h.Delete)
	r.GET("/schedules/:id/score", h.Score)
	return r
}

func serve(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func validEntryPayload() []byte {
	return []byte(`{"class_id":"X-IPA-1","subject_id":"math","teacher_id":"t1","classroom_id":"r1","time_slot":{"day_of_week":1,"start":"08:00","end":"09:00"}}`)
}

func TestTimetableHandlerValidate(t *testing.T) {
	svc := &timetableServiceMock{result: &models.ValidationResult{Valid: true, Violations: []models.Violation{}}}
	w := serve(newTimetableRouter(svc), http.MethodPost, "/schedules/sched-1/entries/validate", validEntryPayload())

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sched-1", svc.scheduleID)
	assert.Equal(t, "t1", svc.captured.TeacherID)
	require.NotNil(t, svc.captured.TimeSlot)
	assert.Equal(t, "08:00", svc.captured.TimeSlot.Start)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["valid"])
}

func TestTimetableHandlerRejectsMalformedJSON(t *testing.T) {
	svc := &timetableServiceMock{}
	w := serve(newTimetableRouter(svc), http.MethodPost, "/schedules/sched-1/entries", []byte(`{"class_id":`))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.scheduleID)
}

func TestTimetableHandlerCreateConflict(t *testing.T) {
	svc := &timetableServiceMock{err: &models.ScheduleConflictError{
		Message:    "entry violates 1 constraint(s)",
		Violations: []models.Violation{{Type: models.ViolationTeacherConflict, Message: "teacher busy", Conflicts: []models.Placement{}}},
	}}
	w := serve(newTimetableRouter(svc), http.MethodPost, "/schedules/sched-1/entries", validEntryPayload())

	require.Equal(t, http.StatusConflict, w.Code)
	payload := decodeEnvelope(t, w)
	errBody := payload["error"].(map[string]interface{})
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, errBody["code"])
	violations := payload["meta"].(map[string]interface{})["violations"].([]interface{})
	require.Len(t, violations, 1)
}

func TestTimetableHandlerCreate(t *testing.T) {
	svc := &timetableServiceMock{entry: &models.Placement{ID: "e1", ScheduleID: "sched-1"}}
	w := serve(newTimetableRouter(svc), http.MethodPost, "/schedules/sched-1/entries", validEntryPayload())

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "e1", data["id"])
}

func TestTimetableHandlerUpdateAndDelete(t *testing.T) {
	svc := &timetableServiceMock{entry: &models.Placement{ID: "e1"}}
	r := newTimetableRouter(svc)

	w := serve(r, http.MethodPut, "/schedules/sched-1/entries/e1", validEntryPayload())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "e1", svc.entryID)

	w = serve(r, http.MethodDelete, "/schedules/sched-1/entries/e2", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "e2", svc.entryID)

	svc.err = appErrors.Clone(appErrors.ErrNotFound, "schedule entry not found")
	w = serve(r, http.MethodDelete, "/schedules/sched-1/entries/e3", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerListAndScore(t *testing.T) {
	svc := &timetableServiceMock{score: &dto.ScoreResponse{ScheduleID: "sched-1", Score: models.Score{Hard: -1, Soft: 3}}}
	r := newTimetableRouter(svc)

	w := serve(r, http.MethodGet, "/schedules/sched-1/entries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	payload := decodeEnvelope(t, w)
	assert.Equal(t, []interface{}{}, payload["data"])
	assert.Equal(t, float64(0), payload["meta"].(map[string]interface{})["count"])

	w = serve(r, http.MethodGet, "/schedules/sched-1/score", nil)
	require.Equal(t, http.StatusOK, w.Code)
	score := decodeEnvelope(t, w)["data"].(map[string]interface{})["score"].(map[string]interface{})
	assert.Equal(t, float64(-1), score["hard"])
}
