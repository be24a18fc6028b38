package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type optimizationService interface {
	StartOptimization(ctx context.Context, scheduleID string, req dto.StartOptimizationRequest) (*dto.StartOptimizationResponse, error)
	PollOptimization(ctx context.Context, scheduleID string) (*dto.OptimizationPollResponse, error)
	CancelOptimization(ctx context.Context, scheduleID string) (*dto.OptimizationPollResponse, error)
	ApplyOptimization(ctx context.Context, scheduleID string, req dto.ApplyOptimizationRequest) (*dto.ApplyOptimizationResponse, error)
}

// OptimizationHandler exposes background optimization endpoints.
type OptimizationHandler struct {
	service optimizationService
}

// NewOptimizationHandler constructs the handler.
func NewOptimizationHandler(svc *service.OptimizationService) *OptimizationHandler {
	return &OptimizationHandler{service: svc}
}

// Start godoc
// @Summary Start optimizing a schedule in the background
// @Description Body is optional; omitted fields use the configured budget.
// @Tags Optimization
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.StartOptimizationRequest false "Budget overrides"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /schedules/{id}/optimization [post]
func (h *OptimizationHandler) Start(c *gin.Context) {
	var req dto.StartOptimizationRequest
	if !bindOptionalJSON(c, &req, "invalid optimization payload") {
		return
	}
	result, err := h.service.StartOptimization(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// Poll godoc
// @Summary Get the state of the schedule's optimization run
// @Tags Optimization
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id}/optimization [get]
func (h *OptimizationHandler) Poll(c *gin.Context) {
	result, err := h.service.PollOptimization(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel the schedule's optimization run
// @Description The best solution found so far stays available for apply.
// @Tags Optimization
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id}/optimization [delete]
func (h *OptimizationHandler) Cancel(c *gin.Context) {
	result, err := h.service.CancelOptimization(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Apply godoc
// @Summary Write the optimized placements back to the schedule
// @Tags Optimization
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.ApplyOptimizationRequest false "Apply options"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /schedules/{id}/optimization/apply [post]
func (h *OptimizationHandler) Apply(c *gin.Context) {
	var req dto.ApplyOptimizationRequest
	if !bindOptionalJSON(c, &req, "invalid apply payload") {
		return
	}
	result, err := h.service.ApplyOptimization(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// bindOptionalJSON decodes the body when one was sent.
func bindOptionalJSON(c *gin.Context, dest interface{}, message string) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
