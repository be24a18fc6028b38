package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableService interface {
	ValidateRequest(ctx context.Context, scheduleID string, req dto.EntryRequest) (*models.ValidationResult, error)
	ListEntries(ctx context.Context, scheduleID string) ([]models.Placement, error)
	CreateEntry(ctx context.Context, scheduleID string, req dto.EntryRequest) (*models.Placement, error)
	UpdateEntry(ctx context.Context, scheduleID, entryID string, req dto.EntryRequest) (*models.Placement, error)
	DeleteEntry(ctx context.Context, scheduleID, entryID string) error
	ScoreSchedule(ctx context.Context, scheduleID string) (*dto.ScoreResponse, error)
}

// TimetableHandler exposes schedule entry endpoints.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Validate godoc
// @Summary Check a schedule entry against the committed timetable
// @Description Nothing is stored. Conflicts are returned in the body with valid=false.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.EntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /schedules/{id}/entries/validate [post]
func (h *TimetableHandler) Validate(c *gin.Context) {
	req, ok := bindEntry(c)
	if !ok {
		return
	}
	result, err := h.service.ValidateRequest(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List schedule entries
// @Tags Timetable
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/entries [get]
func (h *TimetableHandler) List(c *gin.Context) {
	entries, err := h.service.ListEntries(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []models.Placement{}
	}
	response.JSON(c, http.StatusOK, entries, nil, map[string]interface{}{"count": len(entries)})
}

// Create godoc
// @Summary Add an entry to a schedule
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.EntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id}/entries [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	req, ok := bindEntry(c)
	if !ok {
		return
	}
	entry, err := h.service.CreateEntry(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Replace a schedule entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param entryId path string true "Entry ID"
// @Param payload body dto.EntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id}/entries/{entryId} [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	req, ok := bindEntry(c)
	if !ok {
		return
	}
	entry, err := h.service.UpdateEntry(c.Request.Context(), c.Param("id"), c.Param("entryId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Remove a schedule entry
// @Tags Timetable
// @Param id path string true "Schedule ID"
// @Param entryId path string true "Entry ID"
// @Success 204
// @Router /schedules/{id}/entries/{entryId} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteEntry(c.Request.Context(), c.Param("id"), c.Param("entryId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Score godoc
// @Summary Score the committed timetable
// @Tags Timetable
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/score [get]
func (h *TimetableHandler) Score(c *gin.Context) {
	score, err := h.service.ScoreSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

func bindEntry(c *gin.Context) (dto.EntryRequest, bool) {
	var req dto.EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return req, false
	}
	return req, true
}
