package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-issue-api/internal/models"
	"github.com/noah-isme/civic-issue-api/internal/service"
	"github.com/noah-isme/civic-issue-api/pkg/response"
)

type analyticsService interface {
	Summary(ctx context.Context) (*models.AnalyticsSummary, bool, error)
	Export(ctx context.Context, kind service.ExportKind, format service.ExportFormat) (*service.ExportFile, error)
}

// AnalyticsHandler serves the admin dashboard.
type AnalyticsHandler struct {
	service analyticsService
}

// NewAnalyticsHandler constructs an AnalyticsHandler.
func NewAnalyticsHandler(svc analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// Summary godoc
// @Summary Dashboard analytics
// @Description Counts by status, category groups, department performance, staff workload and trending issues.
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /analytics/summary [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	summary, cached, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cache_hit": cached})
}

// Export godoc
// @Summary Export analytics report
// @Tags Analytics
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv|pdf" default(csv)
// @Param kind query string false "staff|departments" default(staff)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /analytics/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", string(service.ExportCSV))))
	kind := strings.ToLower(strings.TrimSpace(c.Query("kind")))

	file, err := h.service.Export(c.Request.Context(), service.ExportKind(kind), service.ExportFormat(format))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
