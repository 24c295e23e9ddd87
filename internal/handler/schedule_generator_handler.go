package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iload-dev/iload-api/internal/service"
	appErrors "github.com/iload-dev/iload-api/pkg/errors"
	"github.com/iload-dev/iload-api/pkg/response"
)

// ScheduleGeneratorHandler manages timetable generation endpoints.
type ScheduleGeneratorHandler struct {
	service *service.ScheduleGeneratorService
}

// NewScheduleGeneratorHandler constructs handler.
func NewScheduleGeneratorHandler(svc *service.ScheduleGeneratorService) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc}
}

// Generate godoc
// @Summary Generate a conflict-free timetable proposal
// @Tags Schedules
// @Accept json
// @Produce json
// @Param request body service.GenerateScheduleInput true "Classes to place"
// @Success 200 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	var input service.GenerateScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	proposal, err := h.service.Generate(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal, nil)
}

// Proposal godoc
// @Summary Fetch a generated proposal
// @Tags Schedules
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/proposals/{id} [get]
func (h *ScheduleGeneratorHandler) Proposal(c *gin.Context) {
	proposal, err := h.service.Proposal(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal, nil)
}

// Save godoc
// @Summary Persist a generated proposal as schedule entries
// @Tags Schedules
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 201 {object} response.Envelope
// @Router /schedules/proposals/{id}/save [post]
func (h *ScheduleGeneratorHandler) Save(c *gin.Context) {
	saved, err := h.service.Save(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, saved, nil)
}

// Discard godoc
// @Summary Discard a generated proposal
// @Tags Schedules
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 204
// @Router /schedules/proposals/{id} [delete]
func (h *ScheduleGeneratorHandler) Discard(c *gin.Context) {
	if err := h.service.Discard(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
