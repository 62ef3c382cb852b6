package database

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/repository"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// TaskRepositoryImpl implements TaskRepository interface using GORM.
type TaskRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewTaskRepository creates a new GORM task repository.
func NewTaskRepository(db *gorm.DB, log logger.Logger) repository.TaskRepository {
	return &TaskRepositoryImpl{db: db, logger: log}
}

func (r *TaskRepositoryImpl) ListByUser(ctx context.Context, userID string) ([]*models.Task, error) {
	var tasks []*models.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		r.logger.Error(ctx, "Failed to list tasks", err, logger.String("user_id", userID))
		return nil, errors.ErrDatabase.WithError(err)
	}
	return tasks, nil
}

func (r *TaskRepositoryImpl) FindByID(ctx context.Context, userID, id string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&task).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrResourceNotFound("task")
		}
		return nil, errors.ErrDatabase.WithError(err)
	}
	return &task, nil
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Subtasks == nil {
		task.Subtasks = []string{}
	}
	if task.Blockers == nil {
		task.Blockers = []string{}
	}

	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		r.logger.Error(ctx, "Failed to create task", err, logger.String("user_id", task.UserID))
		return errors.ErrDatabase.WithError(err)
	}

	r.logger.Debug(ctx, "Task created", logger.String("task_id", task.ID))
	return nil
}

func (r *TaskRepositoryImpl) UpdateStatus(ctx context.Context, userID, id string, status models.TaskStatus) (*models.Task, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, errors.ErrDatabase.WithError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.ErrResourceNotFound("task")
	}
	return r.FindByID(ctx, userID, id)
}

func (r *TaskRepositoryImpl) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Task{})
	if res.Error != nil {
		return errors.ErrDatabase.WithError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrResourceNotFound("task")
	}
	return nil
}
