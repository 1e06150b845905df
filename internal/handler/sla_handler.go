package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	"github.com/noah-isme/civic-issue-api/internal/service"
	"github.com/noah-isme/civic-issue-api/pkg/response"
)

type slaSweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// SLAHandler lets admins trigger an SLA sweep without waiting for the next tick.
type SLAHandler struct {
	monitor slaSweeper
}

// NewSLAHandler constructs an SLAHandler.
func NewSLAHandler(monitor slaSweeper) *SLAHandler {
	return &SLAHandler{monitor: monitor}
}

// Sweep godoc
// @Summary Run an SLA sweep now
// @Tags SLA
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /sla/sweep [post]
func (h *SLAHandler) Sweep(c *gin.Context) {
	result, err := h.monitor.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SLASweepResponse{
		Scanned:        result.Scanned,
		MarkedOverdue:  result.MarkedOverdue,
		WarningsRaised: result.WarningsRaised,
	}, nil)
}
