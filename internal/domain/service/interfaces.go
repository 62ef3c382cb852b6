package service

import (
	"context"
	"time"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/pkg/constants"
)

// RateLimiter consumes points from one bucket pool.
// Implementations must make Consume atomic per key.
type RateLimiter interface {
	// Consume attempts to take one point from the bucket for key.
	// A denied decision is not an error; errors are reserved for faults.
	Consume(ctx context.Context, key string) (models.RateDecision, error)

	// Reset discards the bucket for key.
	Reset(ctx context.Context, key string) error

	// Usage reports the current state of the bucket for key.
	Usage(ctx context.Context, key string) (*models.BucketUsage, error)

	// Limit returns the per-window quota of this pool.
	Limit() int

	// Window returns the window length of this pool.
	Window() time.Duration
}

// RateLimitPools groups the independent bucket pools used by the gate.
// Handshake is nil when OAuth handshake paths are exempt from throttling.
type RateLimitPools struct {
	Authenticated RateLimiter
	Anonymous     RateLimiter
	Handshake     RateLimiter
}

// For returns the pool for the given name, or nil.
func (p RateLimitPools) For(pool constants.RateLimitPool) RateLimiter {
	switch pool {
	case constants.RateLimitPoolAuthenticated:
		return p.Authenticated
	case constants.RateLimitPoolAnonymous:
		return p.Anonymous
	case constants.RateLimitPoolHandshake:
		return p.Handshake
	}
	return nil
}

// SessionVerifier turns a raw session credential into claims.
//
// Verify returns (nil, nil) when the credential is absent, malformed, expired,
// badly signed or revoked; such callers are anonymous. A non-nil error is a
// fault (for example the revocation store is unreachable).
type SessionVerifier interface {
	Verify(ctx context.Context, credential string) (*models.SessionClaims, error)
}

// SessionManager issues and revokes session credentials.
type SessionManager interface {
	SessionVerifier
	Issue(ctx context.Context, user *models.User) (token string, expiresAt time.Time, err error)
	Revoke(ctx context.Context, claims *models.SessionClaims) error
}

// RevocationStore remembers revoked session ids until they would have expired.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// IdentityProvider runs the OAuth authorization-code flow against an external provider.
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.ProviderIdentity, error)
}

// SecurityEventSink receives security events.
type SecurityEventSink interface {
	Record(ctx context.Context, event models.SecurityEvent)
}

// Completer sends a prompt to a completion model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (*models.Completion, error)
}

// UsageRecorder accumulates AI token usage.
type UsageRecorder interface {
	RecordTokens(tokens int)
}
