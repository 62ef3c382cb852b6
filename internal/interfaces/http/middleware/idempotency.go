package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/pkg/logger"
)

// HeaderIdempotencyKey lets the dashboard retry a create without duplicating it.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLength = 128

// IdempotencyMiddleware returns a Gin middleware that rejects a replayed
// Idempotency-Key with 409 Conflict. Keys are scoped to the caller's bucket
// key and remembered for ttl with Redis SETNX. A request that ends with a
// status >= 400 releases its key so the same create can be retried.
// Requests without the header pass through; a nil client disables the check.
// IdempotencyMiddleware 使用 Redis SETNX 拒绝重复提交的请求。
func IdempotencyMiddleware(redisClient redis.UniversalClient, ttl time.Duration, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if redisClient == nil || key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		reqLog := log.ForContext(ctx)
		if len(key) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid Idempotency-Key"})
			return
		}

		scope := "anonymous"
		if identity, ok := CallerFromContext(c); ok {
			scope = identity.BucketKey()
		}

		redisKey := "dashgate:idempotency:" + scope + ":" + key
		isNew, err := redisClient.SetNX(ctx, redisKey, 1, ttl).Result()
		if err != nil {
			reqLog.Error(ctx, "Idempotency check failed", err)
			c.Next() // fail open
			return
		}

		if !isNew {
			reqLog.Warn(ctx, "Duplicate request rejected", logger.String("idempotency_key", key))
			c.AbortWithStatusJSON(http.StatusConflict, dto.ErrorResponse{Error: "Duplicate request"})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			// Released even when the client has gone away.
			if err := redisClient.Del(context.WithoutCancel(ctx), redisKey).Err(); err != nil {
				reqLog.Error(ctx, "Failed to release idempotency key", err)
			}
		}
	}
}
