package models

import "time"

// TaskPriority 任务优先级
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task is a to-do item owned by a user.
// Task 是用户拥有的待办事项。
type Task struct {
	ID              string       `json:"id" gorm:"primaryKey;size:36"`
	UserID          string       `json:"userId" gorm:"index;size:36;not null"`
	Title           string       `json:"title" gorm:"not null"`
	Description     string       `json:"description,omitempty"`
	Priority        TaskPriority `json:"priority" gorm:"size:16;not null"`
	Status          TaskStatus   `json:"status" gorm:"size:16;not null"`
	DueDate         *time.Time   `json:"dueDate,omitempty"`
	EstimatedEffort int          `json:"estimatedEffort,omitempty"`
	Subtasks        []string     `json:"subtasks" gorm:"serializer:json"`
	OptimalTime     string       `json:"optimalTime,omitempty"`
	Blockers        []string     `json:"blockers" gorm:"serializer:json"`
	CreatedAt       time.Time    `json:"createdAt" gorm:"index"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// DefaultSubtasks are attached to tasks that receive no AI breakdown.
var DefaultSubtasks = []string{"Research requirements", "Implementation", "Testing"}

// OptimalTimes are the time-of-day slots suggested for new tasks.
var OptimalTimes = []string{"Morning", "Afternoon", "Evening"}
