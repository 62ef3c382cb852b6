package dto

import (
	"time"

	"github.com/turtacn/dashgate/internal/domain/models"
)

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Priority    models.TaskPriority `json:"priority,omitempty"`
	DueDate     *time.Time          `json:"dueDate,omitempty"`
}

// UpdateTaskRequest 更新任务状态请求
type UpdateTaskRequest struct {
	Status models.TaskStatus `json:"status"`
}

// EnhanceTaskRequest asks for an AI plan of a task title.
type EnhanceTaskRequest struct {
	TaskTitle string `json:"taskTitle"`
}
