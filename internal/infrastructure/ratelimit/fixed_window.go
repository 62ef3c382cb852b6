// Package ratelimit provides fixed-window rate limiting implementations.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/dashgate/internal/domain/models"
)

// Clock returns the current time. Tests inject a fake clock.
type Clock func() time.Time

// FixedWindow is a single bucket: at most limit points per window.
// The window starts at the first consume after the previous one has elapsed.
type FixedWindow struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	used    int
	resetAt time.Time
}

// NewFixedWindow creates an empty bucket.
func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{limit: limit, window: window}
}

// Consume takes one point at time now. A denied consume leaves the bucket untouched.
func (w *FixedWindow) Consume(now time.Time) models.RateDecision {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.roll(now)

	if w.used >= w.limit {
		return models.Deny(w.limit, w.resetAt, w.resetAt.Sub(now))
	}

	w.used++
	return models.Allow(w.limit, w.limit-w.used, w.resetAt)
}

// roll starts a new window once the current one has elapsed.
// Must be called with lock held.
func (w *FixedWindow) roll(now time.Time) {
	if !now.Before(w.resetAt) {
		w.used = 0
		w.resetAt = now.Add(w.window)
	}
}

// Remaining returns the points left at time now without consuming.
func (w *FixedWindow) Remaining(now time.Time) (int, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !now.Before(w.resetAt) {
		return w.limit, now.Add(w.window)
	}
	return w.limit - w.used, w.resetAt
}

// expired reports whether the window has elapsed, so the bucket is
// indistinguishable from a fresh one.
func (w *FixedWindow) expired(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !now.Before(w.resetAt)
}

// MemoryRateLimiter is an in-process pool of fixed-window buckets keyed by
// bucket key. Buckets are created lazily and evicted by Cleanup once their
// window has elapsed.
type MemoryRateLimiter struct {
	mu      sync.RWMutex
	name    string
	limit   int
	window  time.Duration
	clock   Clock
	buckets map[string]*FixedWindow
}

// NewMemoryRateLimiter creates a pool with the given quota and window.
func NewMemoryRateLimiter(name string, limit int, window time.Duration, clock Clock) *MemoryRateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryRateLimiter{
		name:    name,
		limit:   limit,
		window:  window,
		clock:   clock,
		buckets: make(map[string]*FixedWindow),
	}
}

// Consume takes one point from the bucket for key.
//
// The pool read lock is held for the whole consume so Cleanup can never
// evict a bucket that is in use.
func (p *MemoryRateLimiter) Consume(ctx context.Context, key string) (models.RateDecision, error) {
	now := p.clock()

	p.mu.RLock()
	if bucket, ok := p.buckets[key]; ok {
		decision := bucket.Consume(now)
		p.mu.RUnlock()
		return decision, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	bucket, ok := p.buckets[key]
	if !ok {
		bucket = NewFixedWindow(p.limit, p.window)
		p.buckets[key] = bucket
	}
	return bucket.Consume(now), nil
}

// Reset removes the bucket for key.
func (p *MemoryRateLimiter) Reset(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.buckets, key)
	return nil
}

// Usage reports the bucket state for key. Unknown keys report a full quota.
func (p *MemoryRateLimiter) Usage(ctx context.Context, key string) (*models.BucketUsage, error) {
	now := p.clock()

	p.mu.RLock()
	bucket, ok := p.buckets[key]
	p.mu.RUnlock()

	remaining, resetAt := p.limit, now.Add(p.window)
	if ok {
		remaining, resetAt = bucket.Remaining(now)
	}
	return newBucketUsage(key, p.limit, remaining, resetAt), nil
}

// Limit returns the per-window quota.
func (p *MemoryRateLimiter) Limit() int { return p.limit }

// Window returns the window length.
func (p *MemoryRateLimiter) Window() time.Duration { return p.window }

// Name returns the pool name.
func (p *MemoryRateLimiter) Name() string { return p.name }

// Cleanup removes buckets whose window has elapsed and returns how many were removed.
func (p *MemoryRateLimiter) Cleanup() int {
	now := p.clock()

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for key, bucket := range p.buckets {
		if bucket.expired(now) {
			delete(p.buckets, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of live buckets.
func (p *MemoryRateLimiter) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.buckets)
}

func newBucketUsage(key string, limit, remaining int, resetAt time.Time) *models.BucketUsage {
	if remaining < 0 {
		remaining = 0
	}
	percentage := 0.0
	if limit > 0 {
		percentage = float64(limit-remaining) / float64(limit) * 100.0
	}
	return &models.BucketUsage{
		Key:        key,
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		Percentage: percentage,
	}
}
