package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iload-dev/iload-api/internal/service"
	"github.com/iload-dev/iload-api/pkg/response"
)

// DashboardHandler serves aggregated dashboard data.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Stats godoc
// @Summary Dashboard counters
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Metrics godoc
// @Summary Runtime metrics snapshot
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/metrics [get]
func (h *DashboardHandler) Metrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Metrics(), nil)
}
