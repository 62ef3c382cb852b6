package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/turtacn/dashgate/pkg/logger"
)

// Janitor evicts elapsed in-memory buckets on a cron schedule.
type Janitor struct {
	mu       sync.Mutex
	cron     *cron.Cron
	pools    []*MemoryRateLimiter
	schedule string
	logger   logger.Logger
	running  bool

	// OnSweep, when set, receives the eviction count of every sweep.
	OnSweep func(removed int)
}

// NewJanitor creates a janitor for the given pools.
func NewJanitor(schedule string, pools []*MemoryRateLimiter, log logger.Logger) *Janitor {
	return &Janitor{
		cron:     cron.New(),
		pools:    pools,
		schedule: schedule,
		logger:   log,
	}
}

// Start schedules the cleanup job. An empty schedule or no pools is a no-op.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.schedule == "" || len(j.pools) == 0 {
		return nil
	}

	if _, err := cron.ParseStandard(j.schedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", j.schedule, err)
	}
	if _, err := j.cron.AddFunc(j.schedule, func() { j.Sweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule bucket cleanup: %w", err)
	}

	j.cron.Start()
	j.running = true
	j.logger.Info(ctx, "Rate limit janitor started", logger.String("schedule", j.schedule))

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

// Sweep runs one cleanup pass and returns the number of evicted buckets.
func (j *Janitor) Sweep(ctx context.Context) int {
	removed := 0
	for _, p := range j.pools {
		removed += p.Cleanup()
	}
	if removed > 0 {
		j.logger.Debug(ctx, "Cleaned up idle buckets", logger.Int("count", removed))
	}
	if j.OnSweep != nil {
		j.OnSweep(removed)
	}
	return removed
}

// Stop stops the scheduler and waits for a running sweep.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		<-j.cron.Stop().Done()
		j.running = false
	}
}
