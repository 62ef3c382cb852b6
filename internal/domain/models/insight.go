package models

// SuggestionType classifies a dashboard suggestion.
type SuggestionType string

const (
	SuggestionMeetingPrep          SuggestionType = "MEETING_PREP"
	SuggestionTaskReminder         SuggestionType = "TASK_REMINDER"
	SuggestionEmailFollowup        SuggestionType = "EMAIL_FOLLOWUP"
	SuggestionScheduleOptimization SuggestionType = "SCHEDULE_OPTIMIZATION"
)

// Suggestion is a single insight card shown on the dashboard.
type Suggestion struct {
	ID          string         `json:"id"`
	Type        SuggestionType `json:"type"`
	Content     string         `json:"content"`
	Priority    float64        `json:"priority"`
	Explanation string         `json:"explanation"`
}

// TaskPlan is the structured breakdown returned by task enhancement.
type TaskPlan struct {
	RefinedTitle  string   `json:"refinedTitle"`
	Effort        int      `json:"effort"`
	Subtasks      []string `json:"subtasks"`
	SuggestedTime string   `json:"suggestedTime"`
	Blockers      []string `json:"blockers"`
}

// FallbackPlan is returned when the completion service is unavailable or
// produces an unusable answer.
func FallbackPlan(title string) TaskPlan {
	return TaskPlan{
		RefinedTitle:  title,
		Effort:        3,
		Subtasks:      append([]string(nil), DefaultSubtasks...),
		SuggestedTime: "When you have time",
		Blockers:      []string{},
	}
}

// Completion is the raw answer of a completion call plus its token usage.
type Completion struct {
	Content     string
	TotalTokens int
}

// CostData is the AI usage meter shown on the dashboard.
type CostData struct {
	Tokens          int     `json:"tokens"`
	Cost            float64 `json:"cost"`
	MonthlyLimit    int     `json:"monthlyLimit"`
	UsagePercentage float64 `json:"usagePercentage"`
}
