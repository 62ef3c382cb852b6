// Package constants defines system-wide constants for the dashgate service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Runtime Mode Constants
// ================================================================================

// Mode is the deployment mode of the process. It controls CSP strictness,
// HSTS emission and development-only routes.
type Mode string

const (
	// ModeDevelopment relaxes the content security policy and enables pprof.
	ModeDevelopment Mode = "development"

	// ModeProduction enables Strict-Transport-Security.
	ModeProduction Mode = "production"

	// ModeTest behaves like production without HSTS.
	ModeTest Mode = "test"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type used for values stored in request contexts.
type ContextKey string

const (
	// ContextKeyRequestID holds the per-request trace identifier.
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyLogger holds the request-scoped logger.
	ContextKeyLogger ContextKey = "logger"

	// ContextKeyIdentity holds the resolved caller identity.
	ContextKeyIdentity ContextKey = "caller_identity"

	// ContextKeyTraceID holds the OpenTelemetry trace id.
	ContextKeyTraceID ContextKey = "trace_id"
)

// ================================================================================
// HTTP Header Constants
// ================================================================================

const (
	HeaderRequestID             = "X-Request-ID"
	HeaderForwardedFor          = "X-Forwarded-For"
	HeaderRealIP                = "X-Real-IP"
	HeaderRetryAfter            = "Retry-After"
	HeaderRateLimitLimit        = "X-RateLimit-Limit"
	HeaderRateLimitRemaining    = "X-RateLimit-Remaining"
	HeaderContentSecurityPolicy = "Content-Security-Policy"
	HeaderFrameOptions          = "X-Frame-Options"
	HeaderContentTypeOptions    = "X-Content-Type-Options"
	HeaderReferrerPolicy        = "Referrer-Policy"
	HeaderPermissionsPolicy     = "Permissions-Policy"
	HeaderStrictTransport       = "Strict-Transport-Security"
)

// UnknownAddress is the source address used when no forwarding header is present.
const UnknownAddress = "unknown"

// ================================================================================
// Rate Limiting Constants
// ================================================================================

const (
	// DefaultAuthenticatedQuota is the per-window quota for signed-in callers.
	DefaultAuthenticatedQuota = 50

	// DefaultAnonymousQuota is the per-window quota keyed by source address.
	DefaultAnonymousQuota = 10

	// DefaultRateLimitWindow is the fixed window length.
	DefaultRateLimitWindow = 60 * time.Second

	// DefaultBucketCleanupSchedule evicts expired in-memory buckets.
	DefaultBucketCleanupSchedule = "@every 1m"
)

// RateLimitPool identifies one of the independent bucket pools.
type RateLimitPool string

const (
	RateLimitPoolAuthenticated RateLimitPool = "authenticated"
	RateLimitPoolAnonymous     RateLimitPool = "anonymous"
	RateLimitPoolHandshake     RateLimitPool = "handshake"
)

// Bucket key prefixes.
const (
	BucketKeyUserPrefix = "user:"
	BucketKeyIPPrefix   = "ip:"
)

// ================================================================================
// Session Constants
// ================================================================================

const (
	// SessionCookieName is the session cookie used over plain HTTP.
	SessionCookieName = "dashgate.session-token"

	// SecureSessionCookieName is the session cookie used over HTTPS.
	SecureSessionCookieName = "__Secure-dashgate.session-token"

	// OAuthStateCookieName carries the OAuth state between signin and callback.
	OAuthStateCookieName = "dashgate.oauth-state"

	// DefaultSessionMaxAge is the lifetime of an issued session (30 days).
	DefaultSessionMaxAge = 30 * 24 * time.Hour

	// SessionIssuer is the iss claim of session credentials.
	SessionIssuer = "dashgate"
)

// ================================================================================
// Security Event Constants
// ================================================================================

// SecurityEventType classifies security-relevant events.
type SecurityEventType string

const (
	SecurityEventAuthSuccess        SecurityEventType = "auth_success"
	SecurityEventAuthFailure        SecurityEventType = "auth_failure"
	SecurityEventRateLimit          SecurityEventType = "rate_limit"
	SecurityEventUnauthorizedAccess SecurityEventType = "unauthorized_access"
	SecurityEventTokenRefresh       SecurityEventType = "token_refresh"
)

// ================================================================================
// Log Level Constants
// ================================================================================

// LogLevel represents the logging severity level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ================================================================================
// Service Constants
// ================================================================================

const (
	// ServiceName is used for tracing and metrics namespaces.
	ServiceName = "dashgate"

	// ServiceVersion is reported by the health endpoint.
	ServiceVersion = "0.3.0"

	// MetricsNamespace prefixes all Prometheus metrics.
	MetricsNamespace = "dashgate"
)
