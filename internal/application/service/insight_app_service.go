package service

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/pkg/errors"
)

// TaskEnhancer produces an AI plan for a task title. Implementations never
// fail; they degrade to models.FallbackPlan.
type TaskEnhancer interface {
	Enhance(ctx context.Context, title string) models.TaskPlan
}

// InsightAppService serves the dashboard's suggestion cards, task
// enhancement and AI cost meter.
// InsightAppService 智能洞察应用服务接口。
type InsightAppService interface {
	Suggestions(ctx context.Context) []models.Suggestion
	Enhance(ctx context.Context, taskTitle string) (models.TaskPlan, error)
	Cost(ctx context.Context) models.CostData
}

var staticSuggestions = []models.Suggestion{
	{
		ID:          "1",
		Type:        models.SuggestionMeetingPrep,
		Content:     `Prepare for "Team Standup" in 1 hour`,
		Priority:    0.8,
		Explanation: "Based on your meeting preparation patterns",
	},
	{
		ID:          "2",
		Type:        models.SuggestionTaskReminder,
		Content:     `Complete "Prepare quarterly presentation" (due in 2 days)`,
		Priority:    0.9,
		Explanation: "This task typically takes 4 hours and is high priority",
	},
	{
		ID:          "3",
		Type:        models.SuggestionScheduleOptimization,
		Content:     "Consider scheduling important meetings now - it's your most productive time",
		Priority:    0.6,
		Explanation: "Your data shows you're most effective in meetings at this time of day",
	},
}

type insightAppServiceImpl struct {
	enhancer TaskEnhancer
	cost     *CostTracker
}

// NewInsightAppService creates a new instance of InsightAppService.
func NewInsightAppService(enhancer TaskEnhancer, cost *CostTracker) InsightAppService {
	return &insightAppServiceImpl{enhancer: enhancer, cost: cost}
}

func (s *insightAppServiceImpl) Suggestions(ctx context.Context) []models.Suggestion {
	out := make([]models.Suggestion, len(staticSuggestions))
	copy(out, staticSuggestions)
	return out
}

func (s *insightAppServiceImpl) Enhance(ctx context.Context, taskTitle string) (models.TaskPlan, error) {
	if strings.TrimSpace(taskTitle) == "" {
		return models.TaskPlan{}, errors.ErrInvalidRequest("Task title is required")
	}
	return s.enhancer.Enhance(ctx, taskTitle), nil
}

func (s *insightAppServiceImpl) Cost(ctx context.Context) models.CostData {
	return s.cost.Observe()
}

// ================================================================================
// Cost Tracker
// ================================================================================

const simulatedGrowthMax = 100

// CostTracker meters AI token usage. Each observation adds a small simulated
// growth on top of the tokens reported by real completions.
// CostTracker 令牌用量计量器。
type CostTracker struct {
	mu           sync.Mutex
	tokens       int
	monthlyLimit int
	pricePer1K   float64
	intn         RandomIntN
}

// NewCostTracker creates a tracker from the cost configuration.
func NewCostTracker(cfg *config.CostConfig, intn RandomIntN) *CostTracker {
	if intn == nil {
		intn = rand.IntN
	}
	return &CostTracker{
		tokens:       cfg.InitialUsage,
		monthlyLimit: cfg.MonthlyLimit,
		pricePer1K:   cfg.PricePer1K,
		intn:         intn,
	}
}

// RecordTokens adds tokens reported by a completion.
func (t *CostTracker) RecordTokens(tokens int) {
	if tokens <= 0 {
		return
	}
	t.mu.Lock()
	t.tokens += tokens
	t.mu.Unlock()
}

// Observe applies the simulated growth and returns the current meter.
func (t *CostTracker) Observe() models.CostData {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tokens += t.intn(simulatedGrowthMax)
	return t.snapshot()
}

// Snapshot returns the current meter without growth.
func (t *CostTracker) Snapshot() models.CostData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *CostTracker) snapshot() models.CostData {
	data := models.CostData{
		Tokens:       t.tokens,
		Cost:         float64(t.tokens) * t.pricePer1K / 1000,
		MonthlyLimit: t.monthlyLimit,
	}
	if t.monthlyLimit > 0 {
		data.UsagePercentage = float64(t.tokens) / float64(t.monthlyLimit) * 100
	}
	return data
}
