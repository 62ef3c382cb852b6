package dto

import "time"

// SessionUser is the user part of the session response.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// SessionResponse 当前会话响应
type SessionResponse struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

// SignInResult is the outcome of a completed provider callback.
type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
	NewUser   bool
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Environment string            `json:"environment"`
	Version     string            `json:"version"`
	Uptime      float64           `json:"uptime"`
	Checks      map[string]string `json:"checks,omitempty"`
}
