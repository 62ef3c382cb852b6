package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/internal/application/service"
	"github.com/turtacn/dashgate/pkg/errors"
)

// InsightHandler serves suggestions, task enhancement and the cost meter.
type InsightHandler struct {
	insights service.InsightAppService
}

// NewInsightHandler creates a new InsightHandler.
func NewInsightHandler(insights service.InsightAppService) *InsightHandler {
	return &InsightHandler{insights: insights}
}

// Suggestions handles GET /api/suggestions.
func (h *InsightHandler) Suggestions(c *gin.Context) {
	c.JSON(http.StatusOK, h.insights.Suggestions(c.Request.Context()))
}

// Enhance handles POST /api/suggestions and POST /api/suggestions/enhance.
// AI failures are answered with the fallback plan, never an error.
func (h *InsightHandler) Enhance(c *gin.Context) {
	var req dto.EnhanceTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, errors.ErrInvalidRequest("Task title is required").WithError(err))
		return
	}

	plan, err := h.insights.Enhance(c.Request.Context(), req.TaskTitle)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// Cost handles GET /api/cost.
func (h *InsightHandler) Cost(c *gin.Context) {
	c.JSON(http.StatusOK, h.insights.Cost(c.Request.Context()))
}
