package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/stem-dashboard-api/internal/middleware"
	"github.com/noah-isme/stem-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/stem-dashboard-api/pkg/errors"
	"github.com/noah-isme/stem-dashboard-api/pkg/response"
)

type summaryService interface {
	Summary(ctx context.Context) (*models.DashboardSummary, bool, error)
}

// SummaryHandler serves the dashboard statistics.
type SummaryHandler struct {
	service summaryService
}

// NewSummaryHandler constructs the handler.
func NewSummaryHandler(service summaryService) *SummaryHandler {
	return &SummaryHandler{service: service}
}

// Summary godoc
// @Summary Dashboard statistics
// @Description Counts, grade averages, DWF rate and demographic breakdowns.
// @Tags Summary
// @Produce json
// @Success 200 {object} response.Envelope{data=models.DashboardSummary}
// @Router /summary [get]
func (h *SummaryHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	summary, cacheHit, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}
