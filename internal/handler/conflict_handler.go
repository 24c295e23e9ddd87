package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iload-dev/iload-api/internal/models"
	"github.com/iload-dev/iload-api/internal/service"
	appErrors "github.com/iload-dev/iload-api/pkg/errors"
	"github.com/iload-dev/iload-api/pkg/response"
)

// ConflictHandler manages conflict endpoints.
type ConflictHandler struct {
	service           *service.ConflictService
	defaultSchoolYear string
	defaultSemester   string
}

// NewConflictHandler constructs handler. The defaults fill in term params
// when a request omits them.
func NewConflictHandler(svc *service.ConflictService, defaultSchoolYear, defaultSemester string) *ConflictHandler {
	return &ConflictHandler{service: svc, defaultSchoolYear: defaultSchoolYear, defaultSemester: defaultSemester}
}

// List godoc
// @Summary List conflicts
// @Tags Conflicts
// @Produce json
// @Param status query string false "Filter by status (Pending or Resolved)"
// @Param type query string false "Filter by conflict type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /conflicts [get]
func (h *ConflictHandler) List(c *gin.Context) {
	var filter models.ConflictFilter
	filter.Status = models.ConflictStatus(c.Query("status"))
	filter.Type = models.ConflictType(c.Query("type"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	conflicts, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, pagination)
}

// Detect godoc
// @Summary Run conflict detection over a term
// @Tags Conflicts
// @Produce json
// @Param schoolYear query string false "School year, e.g. 2025-2026"
// @Param semester query string false "Semester, e.g. 1st Semester"
// @Success 200 {object} response.Envelope
// @Router /conflicts/detect [post]
func (h *ConflictHandler) Detect(c *gin.Context) {
	schoolYear := c.DefaultQuery("schoolYear", h.defaultSchoolYear)
	semester := c.DefaultQuery("semester", h.defaultSemester)

	report, err := h.service.RunDetection(c.Request.Context(), schoolYear, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Resolve godoc
// @Summary Mark a conflict resolved
// @Tags Conflicts
// @Produce json
// @Param id path string true "Conflict ID"
// @Success 200 {object} response.Envelope
// @Router /conflicts/{id}/resolve [post]
func (h *ConflictHandler) Resolve(c *gin.Context) {
	conflict, err := h.service.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflict, nil)
}

// Report godoc
// @Summary Last detection report for a term
// @Tags Conflicts
// @Produce json
// @Param schoolYear query string false "School year"
// @Param semester query string false "Semester"
// @Success 200 {object} response.Envelope
// @Router /conflicts/report [get]
func (h *ConflictHandler) Report(c *gin.Context) {
	schoolYear := c.DefaultQuery("schoolYear", h.defaultSchoolYear)
	semester := c.DefaultQuery("semester", h.defaultSemester)

	report, ok := h.service.LastReport(schoolYear, semester)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no detection report available for this term"))
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
