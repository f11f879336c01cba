package v1

import (
	"net/http"

	"github.com/clavis-health/clavis/internal/service"
	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) Report(c *gin.Context) {
	report, err := h.analytics.Report(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse[*service.AnalyticsReport]{Data: report})
}
