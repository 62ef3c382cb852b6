package service

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/repository"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// TaskAppService defines the task use cases of the dashboard.
// TaskAppService 任务应用服务接口。
type TaskAppService interface {
	// List returns the caller's tasks, newest first.
	// List 列出当前用户的任务。
	List(ctx context.Context, userID string) ([]*models.Task, error)

	// Create validates and stores a task with a simulated enhancement.
	// Create 创建任务并附加模拟的智能增强字段。
	Create(ctx context.Context, userID string, req *dto.CreateTaskRequest) (*models.Task, error)

	// UpdateStatus changes the status of one of the caller's tasks.
	// UpdateStatus 更新任务状态。
	UpdateStatus(ctx context.Context, userID, taskID string, req *dto.UpdateTaskRequest) (*models.Task, error)

	// Delete removes one of the caller's tasks.
	// Delete 删除任务。
	Delete(ctx context.Context, userID, taskID string) error
}

// RandomIntN returns a pseudo-random int in [0, n).
type RandomIntN func(n int) int

type taskAppServiceImpl struct {
	taskRepo repository.TaskRepository
	intn     RandomIntN
	now      func() time.Time
	logger   logger.Logger
}

// NewTaskAppService creates a new instance of TaskAppService.
// intn may be nil, in which case math/rand/v2 is used.
func NewTaskAppService(taskRepo repository.TaskRepository, intn RandomIntN, log logger.Logger) TaskAppService {
	if intn == nil {
		intn = rand.IntN
	}
	return &taskAppServiceImpl{
		taskRepo: taskRepo,
		intn:     intn,
		now:      time.Now,
		logger:   log,
	}
}

func (s *taskAppServiceImpl) List(ctx context.Context, userID string) ([]*models.Task, error) {
	tasks, err := s.taskRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	return tasks, nil
}

func (s *taskAppServiceImpl) Create(ctx context.Context, userID string, req *dto.CreateTaskRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.ErrInvalidRequest("Title is required")
	}

	priority := req.Priority
	if priority == "" {
		priority = models.TaskPriorityMedium
	}
	if !priority.Valid() {
		return nil, errors.ErrInvalidRequest("Invalid priority")
	}

	now := s.now()
	task := &models.Task{
		UserID:          userID,
		Title:           title,
		Description:     req.Description,
		Priority:        priority,
		Status:          models.TaskStatusTodo,
		DueDate:         req.DueDate,
		EstimatedEffort: s.intn(5) + 1,
		Subtasks:        append([]string(nil), models.DefaultSubtasks...),
		OptimalTime:     models.OptimalTimes[s.intn(len(models.OptimalTimes))],
		Blockers:        []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}

	s.logger.ForContext(ctx).Info(ctx, "Task created",
		logger.String("task_id", task.ID),
		logger.String("priority", string(task.Priority)),
	)
	return task, nil
}

func (s *taskAppServiceImpl) UpdateStatus(ctx context.Context, userID, taskID string, req *dto.UpdateTaskRequest) (*models.Task, error) {
	if req.Status == "" {
		return nil, errors.ErrInvalidRequest("Status is required")
	}
	if !req.Status.Valid() {
		return nil, errors.ErrInvalidRequest("Invalid status")
	}
	return s.taskRepo.UpdateStatus(ctx, userID, taskID, req.Status)
}

func (s *taskAppServiceImpl) Delete(ctx context.Context, userID, taskID string) error {
	if err := s.taskRepo.Delete(ctx, userID, taskID); err != nil {
		return err
	}
	s.logger.ForContext(ctx).Info(ctx, "Task deleted", logger.String("task_id", taskID))
	return nil
}
