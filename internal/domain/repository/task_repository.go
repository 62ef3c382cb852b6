package repository

import (
	"context"

	"github.com/turtacn/dashgate/internal/domain/models"
)

// TaskRepository defines the interface for interacting with task storage.
type TaskRepository interface {
	// ListByUser returns the user's tasks, newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Task, error)

	// FindByID retrieves a task owned by userID.
	FindByID(ctx context.Context, userID, id string) (*models.Task, error)

	// Create persists a new task.
	Create(ctx context.Context, task *models.Task) error

	// UpdateStatus changes the status of a task owned by userID and returns it.
	UpdateStatus(ctx context.Context, userID, id string, status models.TaskStatus) (*models.Task, error)

	// Delete removes a task owned by userID.
	Delete(ctx context.Context, userID, id string) error
}
