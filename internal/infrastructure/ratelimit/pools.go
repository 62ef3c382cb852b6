package ratelimit

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/logger"
)

// Pools is the set of bucket pools built from configuration, plus the
// in-memory pools that need periodic cleanup.
type Pools struct {
	service.RateLimitPools
	memory []*MemoryRateLimiter
}

// Memory returns the in-memory pools, if any.
func (p *Pools) Memory() []*MemoryRateLimiter {
	return p.memory
}

// NewPools builds the authenticated, anonymous and optional handshake pools.
// The redis client is only used when the backend is "redis".
func NewPools(cfg *config.GateConfig, client redis.UniversalClient, log logger.Logger) (*Pools, error) {
	pools := &Pools{}

	build := func(name constants.RateLimitPool, limit int) (service.RateLimiter, error) {
		switch cfg.Backend {
		case "", "memory":
			m := NewMemoryRateLimiter(string(name), limit, cfg.Window(), nil)
			pools.memory = append(pools.memory, m)
			return m, nil
		case "redis":
			return NewRedisRateLimiter(client, RedisRateLimiterConfig{
				Name:      string(name),
				KeyPrefix: cfg.RedisKeyPrefix,
				Limit:     limit,
				Window:    cfg.Window(),
			}, log)
		default:
			return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
		}
	}

	var err error
	if pools.Authenticated, err = build(constants.RateLimitPoolAuthenticated, cfg.AuthenticatedQuota); err != nil {
		return nil, err
	}
	if pools.Anonymous, err = build(constants.RateLimitPoolAnonymous, cfg.AnonymousQuota); err != nil {
		return nil, err
	}
	if cfg.HandshakeQuota > 0 {
		if pools.Handshake, err = build(constants.RateLimitPoolHandshake, cfg.HandshakeQuota); err != nil {
			return nil, err
		}
	}
	return pools, nil
}
