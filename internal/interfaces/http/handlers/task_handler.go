package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/internal/application/service"
	"github.com/turtacn/dashgate/internal/interfaces/http/middleware"
	"github.com/turtacn/dashgate/pkg/errors"
)

// TaskHandler handles HTTP requests for the task board.
type TaskHandler struct {
	tasks service.TaskAppService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks service.TaskAppService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// callerID returns the authenticated subject of the request. The gate
// rejects anonymous callers on these routes; the check covers routers
// mounted without it.
func callerID(c *gin.Context) (string, bool) {
	identity, ok := middleware.CallerFromContext(c)
	if !ok || !identity.IsAuthenticated() {
		dto.SendError(c, errors.ErrUnauthorized)
		return "", false
	}
	return identity.SubjectID, true
}

// List handles GET /api/tasks.
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), userID)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, errors.ErrInvalidRequest("Invalid request body").WithError(err))
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), userID, &req)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateStatus handles PUT /api/tasks/:id.
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, errors.ErrInvalidRequest("Invalid request body").WithError(err))
		return
	}

	task, err := h.tasks.UpdateStatus(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/:id.
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}
