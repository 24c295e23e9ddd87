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

// InstructorHandler manages instructor endpoints.
type InstructorHandler struct {
	service *service.InstructorService
}

// NewInstructorHandler constructs handler.
func NewInstructorHandler(svc *service.InstructorService) *InstructorHandler {
	return &InstructorHandler{service: svc}
}

// List godoc
// @Summary List instructors
// @Tags Instructors
// @Produce json
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /instructors [get]
func (h *InstructorHandler) List(c *gin.Context) {
	var filter models.InstructorFilter
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	instructors, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, pagination)
}

// Get godoc
// @Summary Get instructor
// @Tags Instructors
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id} [get]
func (h *InstructorHandler) Get(c *gin.Context) {
	instructor, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

// Create godoc
// @Summary Create instructor
// @Tags Instructors
// @Accept json
// @Produce json
// @Param payload body service.InstructorInput true "Instructor payload"
// @Success 201 {object} response.Envelope
// @Router /instructors [post]
func (h *InstructorHandler) Create(c *gin.Context) {
	var input service.InstructorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	instructor, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instructor)
}

// Update godoc
// @Summary Update instructor
// @Tags Instructors
// @Accept json
// @Produce json
// @Param id path string true "Instructor ID"
// @Param payload body service.InstructorInput true "Instructor payload"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id} [put]
func (h *InstructorHandler) Update(c *gin.Context) {
	var input service.InstructorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	instructor, err := h.service.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

// Delete godoc
// @Summary Delete instructor
// @Tags Instructors
// @Param id path string true "Instructor ID"
// @Success 204
// @Router /instructors/{id} [delete]
func (h *InstructorHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
