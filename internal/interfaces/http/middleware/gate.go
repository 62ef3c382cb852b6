package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/internal/infrastructure/monitoring"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// GateOptions holds the collaborators of the request gate.
type GateOptions struct {
	Mode     constants.Mode
	Verifier service.SessionVerifier
	Pools    service.RateLimitPools
	Events   service.SecurityEventSink
	Metrics  *monitoring.Metrics
	Logger   logger.Logger
	// RequestID generates request ids. Defaults to uuid v4.
	RequestID func() string
}

// Gate authenticates, throttles and decorates every non-static request.
// Gate 请求网关：身份解析、鉴权、限流与安全响应头。
type Gate struct {
	verifier  service.SessionVerifier
	pools     service.RateLimitPools
	headers   *SecurityHeaders
	events    service.SecurityEventSink
	metrics   *monitoring.Metrics
	logger    logger.Logger
	requestID func() string
}

// NewGate creates a gate. Verifier, Pools.Authenticated, Pools.Anonymous and
// Logger are required.
func NewGate(opts GateOptions) (*Gate, error) {
	if opts.Verifier == nil || opts.Pools.Authenticated == nil || opts.Pools.Anonymous == nil {
		return nil, errors.ErrInvalidConfig.WithError(fmt.Errorf("gate requires a verifier and both identity pools"))
	}
	if opts.Logger == nil {
		return nil, errors.ErrInvalidConfig.WithError(fmt.Errorf("gate requires a logger"))
	}
	g := &Gate{
		verifier:  opts.Verifier,
		pools:     opts.Pools,
		headers:   NewSecurityHeaders(opts.Mode),
		events:    opts.Events,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		requestID: opts.RequestID,
	}
	if g.requestID == nil {
		g.requestID = uuid.NewString
	}
	return g, nil
}

// Handler returns the gin middleware.
func (g *Gate) Handler() gin.HandlerFunc {
	return g.handle
}

func (g *Gate) handle(c *gin.Context) {
	path := c.Request.URL.Path
	if IsStaticPath(path) {
		c.Next()
		return
	}

	requestID := g.requestID()
	c.Header(constants.HeaderRequestID, requestID)

	reqLog := g.logger.WithFields(logger.Fields{
		"request_id": requestID,
		"client_ip":  SourceAddress(c.Request),
		"path":       path,
		"method":     c.Request.Method,
	})
	ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, requestID)
	ctx = context.WithValue(ctx, constants.ContextKeyLogger, reqLog)
	c.Request = c.Request.WithContext(ctx)
	c.Set(string(constants.ContextKeyRequestID), requestID)

	// CORS preflights carry no credentials; they are tagged and decorated
	// and left to the CORS handler.
	if isPreflight(c.Request) {
		g.headers.Decorate(c.Writer.Header())
		c.Next()
		return
	}

	admitted := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if r == http.ErrAbortHandler {
			panic(r)
		}
		if admitted {
			g.handlerPanic(c, reqLog, r)
			return
		}
		g.fault(c, reqLog, fmt.Errorf("panic: %v", r))
	}()

	identity, err := ResolveIdentity(ctx, g.verifier, c.Request)
	if err != nil {
		g.fault(c, reqLog, err)
		return
	}
	ctx = context.WithValue(ctx, constants.ContextKeyIdentity, identity)
	c.Request = c.Request.WithContext(ctx)

	if IsAPIPath(path) && !IsPublicPath(path) && !identity.IsAuthenticated() {
		g.unauthorized(c, reqLog)
		return
	}
	if !g.consume(c, reqLog, identity) {
		return
	}

	g.headers.Decorate(c.Writer.Header())
	admitted = true
	c.Next()
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}

// consume charges one point to the pool selected for the request and
// reports whether the request may continue.
func (g *Gate) consume(c *gin.Context, reqLog logger.Logger, identity models.CallerIdentity) bool {
	ctx := c.Request.Context()
	limiter, pool, key := g.selectBucket(c.Request.URL.Path, identity)
	if limiter == nil {
		g.metrics.RecordGateDecision(monitoring.OutcomeExempt, "")
		return true
	}

	decision, err := limiter.Consume(ctx, key)
	if err != nil {
		g.fault(c, reqLog, err)
		return false
	}

	if !decision.Allowed {
		g.throttled(c, reqLog, pool, key, decision, limiter)
		return false
	}

	c.Header(constants.HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
	c.Header(constants.HeaderRateLimitRemaining, strconv.Itoa(decision.PointsLeft))
	g.metrics.RecordGateDecision(monitoring.OutcomeAllowed, pool)
	return true
}

// selectBucket returns the limiter, pool and key charged for path, or a nil
// limiter when the path is exempt.
func (g *Gate) selectBucket(path string, identity models.CallerIdentity) (service.RateLimiter, constants.RateLimitPool, string) {
	if IsHandshakePath(path) {
		if g.pools.Handshake == nil {
			return nil, "", ""
		}
		return g.pools.Handshake, constants.RateLimitPoolHandshake, constants.BucketKeyIPPrefix + identity.SourceAddress
	}
	if ShouldSkipThrottle(path) {
		return nil, "", ""
	}
	pool := identity.Pool()
	return g.pools.For(pool), pool, identity.BucketKey()
}

func (g *Gate) unauthorized(c *gin.Context, reqLog logger.Logger) {
	ctx := c.Request.Context()
	reqLog.Warn(ctx, "Unauthorized API access attempt")
	g.metrics.RecordGateDecision(monitoring.OutcomeUnauthorized, "")
	monitoring.AnnotateGateDecision(ctx, monitoring.OutcomeUnauthorized, "", nil)
	g.record(ctx, constants.SecurityEventUnauthorizedAccess, "Unauthorized API access attempt", c.Request.URL.Path, nil)
	dto.AbortWithError(c, errors.ErrUnauthorized)
}

func (g *Gate) throttled(c *gin.Context, reqLog logger.Logger, pool constants.RateLimitPool, key string, decision models.RateDecision, limiter service.RateLimiter) {
	ctx := c.Request.Context()
	reqLog.Warn(ctx, "Rate limit exceeded",
		logger.String("pool", string(pool)),
		logger.String("bucket_key", key),
		logger.Int("remaining_points", decision.PointsLeft),
		logger.Int64("ms_before_next", decision.RetryAfter.Milliseconds()),
	)
	g.metrics.RecordGateDecision(monitoring.OutcomeThrottled, pool)
	monitoring.AnnotateGateDecision(ctx, monitoring.OutcomeThrottled, pool, nil)
	g.record(ctx, constants.SecurityEventRateLimit, "Rate limit exceeded", c.Request.URL.Path, logger.Fields{
		"pool":           string(pool),
		"ms_before_next": decision.RetryAfter.Milliseconds(),
	})

	c.Header(constants.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(limiter)))
	dto.AbortWithError(c, errors.ErrRateLimitExceeded)
}

// retryAfterSeconds is the window length of limiter, rounded up.
func retryAfterSeconds(limiter service.RateLimiter) int {
	return int(math.Ceil(limiter.Window().Seconds()))
}

// fault converts a pipeline error or panic into a 500.
func (g *Gate) fault(c *gin.Context, reqLog logger.Logger, err error) {
	ctx := c.Request.Context()
	reqLog.Error(ctx, "Middleware error", err)
	g.metrics.RecordGateDecision(monitoring.OutcomeError, "")
	monitoring.AnnotateGateDecision(ctx, monitoring.OutcomeError, "", err)
	abortInternal(c)
}

// handlerPanic converts a panic raised downstream of an admitted request.
func (g *Gate) handlerPanic(c *gin.Context, reqLog logger.Logger, recovered interface{}) {
	ctx := c.Request.Context()
	reqLog.Error(ctx, "Handler panic", fmt.Errorf("panic: %v", recovered),
		logger.String("handler", c.HandlerName()),
		logger.String("stack", string(debug.Stack())),
	)
	abortInternal(c)
}

// abortInternal answers 500 unless a downstream handler already started the response.
func abortInternal(c *gin.Context) {
	if c.Writer.Written() {
		c.Abort()
		return
	}
	dto.AbortWithError(c, errors.ErrInternalServer)
}

func (g *Gate) record(ctx context.Context, eventType constants.SecurityEventType, message, path string, fields logger.Fields) {
	if g.events == nil {
		return
	}
	event := models.NewSecurityEvent(ctx, eventType, message)
	event.Path = path
	event.Fields = fields
	g.events.Record(ctx, event)
}

