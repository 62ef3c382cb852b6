package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/internal/infrastructure/monitoring"
	"github.com/turtacn/dashgate/pkg/logger"
)

// Fallback reasons reported to metrics.
const (
	FallbackDisabled  = "disabled"
	FallbackError     = "error"
	FallbackEmpty     = "empty"
	FallbackMalformed = "malformed"
)

const systemInstruction = "You are a helpful productivity assistant that provides structured, actionable task breakdowns."

const planPromptTemplate = `You are a productivity expert. Transform this task into an actionable plan:
TASK: %q
Provide:
1. A refined task title (clear, actionable)
2. Estimated effort (1-5, where 5 is most effort)
3. Subtasks (if complex)
4. Optimal placement in schedule
5. Potential blockers
Respond in JSON format:
{
  "refinedTitle": "...",
  "effort": 1-5,
  "subtasks": ["..."],
  "suggestedTime": "when to do this",
  "blockers": ["..."]
}`

// TaskEnhancer turns a task title into a structured plan. Every failure of
// the completer degrades to models.FallbackPlan; Enhance never returns an error.
type TaskEnhancer struct {
	completer service.Completer
	usage     service.UsageRecorder
	metrics   *monitoring.Metrics
	logger    logger.Logger
}

// NewTaskEnhancer creates an enhancer. completer may be nil, which always
// yields the fallback plan. usage and metrics are optional.
func NewTaskEnhancer(completer service.Completer, usage service.UsageRecorder, metrics *monitoring.Metrics, log logger.Logger) *TaskEnhancer {
	return &TaskEnhancer{completer: completer, usage: usage, metrics: metrics, logger: log}
}

// Enhance returns the AI plan for title, or the fallback plan.
func (e *TaskEnhancer) Enhance(ctx context.Context, title string) models.TaskPlan {
	if e.completer == nil {
		return e.fallback(ctx, title, FallbackDisabled, nil)
	}

	completion, err := e.completer.Complete(ctx, systemInstruction, fmt.Sprintf(planPromptTemplate, title))
	if err != nil {
		return e.fallback(ctx, title, FallbackError, err)
	}

	if completion.TotalTokens > 0 {
		if e.usage != nil {
			e.usage.RecordTokens(completion.TotalTokens)
		}
		e.metrics.RecordAITokens(completion.TotalTokens)
	}

	if strings.TrimSpace(completion.Content) == "" {
		return e.fallback(ctx, title, FallbackEmpty, nil)
	}

	plan, err := ParsePlan(completion.Content)
	if err != nil {
		return e.fallback(ctx, title, FallbackMalformed, err)
	}
	return plan
}

func (e *TaskEnhancer) fallback(ctx context.Context, title, reason string, err error) models.TaskPlan {
	e.metrics.RecordAIFallback(reason)
	if err != nil {
		e.logger.ForContext(ctx).Error(ctx, "AI enhancement failed", err, logger.String("reason", reason))
	} else {
		e.logger.ForContext(ctx).Warn(ctx, "AI enhancement unavailable", logger.String("reason", reason))
	}
	return models.FallbackPlan(title)
}

// ParsePlan decodes a completion answer. Answers wrapped in a markdown code
// fence are accepted. Effort is clamped to 1..5 and nil lists become empty.
func ParsePlan(content string) (models.TaskPlan, error) {
	var plan models.TaskPlan
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &plan); err != nil {
		return models.TaskPlan{}, fmt.Errorf("decode plan: %w", err)
	}
	if strings.TrimSpace(plan.RefinedTitle) == "" {
		return models.TaskPlan{}, fmt.Errorf("decode plan: refinedTitle is empty")
	}

	switch {
	case plan.Effort < 1:
		plan.Effort = 1
	case plan.Effort > 5:
		plan.Effort = 5
	}
	if plan.Subtasks == nil {
		plan.Subtasks = []string{}
	}
	if plan.Blockers == nil {
		plan.Blockers = []string{}
	}
	return plan, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
