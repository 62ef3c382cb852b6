package models

import (
	"fmt"
	"time"
)

// RateDecision is the typed outcome of consuming one point from a bucket.
//
// Allowed decisions carry the points left in the current window; denied
// decisions carry the time until the window resets. A denied decision never
// reflects a mutation of the bucket.
type RateDecision struct {
	Allowed    bool
	Limit      int
	PointsLeft int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Allow creates an allowed decision.
func Allow(limit, pointsLeft int, resetAt time.Time) RateDecision {
	if pointsLeft < 0 {
		pointsLeft = 0
	}
	return RateDecision{Allowed: true, Limit: limit, PointsLeft: pointsLeft, ResetAt: resetAt}
}

// Deny creates a denied decision. Negative retry durations are clamped to zero.
func Deny(limit int, resetAt time.Time, retryAfter time.Duration) RateDecision {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return RateDecision{Allowed: false, Limit: limit, ResetAt: resetAt, RetryAfter: retryAfter}
}

func (d RateDecision) String() string {
	if d.Allowed {
		return fmt.Sprintf("ALLOW(%d/%d)", d.PointsLeft, d.Limit)
	}
	return fmt.Sprintf("DENY(retry in %s)", d.RetryAfter)
}

// BucketUsage is a point-in-time snapshot of a bucket, used by admin tooling.
type BucketUsage struct {
	Key        string    `json:"key"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	Percentage float64   `json:"percentage"`
}
