package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/infrastructure/monitoring"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/logger"
)

func TestIdempotencyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	newRouter := func(c redis.UniversalClient) (*gin.Engine, *int) {
		created := 0
		r := gin.New()
		r.Use(func(c *gin.Context) {
			identity := models.Authenticated("u1", "1.2.3.4", nil)
			ctx := context.WithValue(c.Request.Context(), constants.ContextKeyIdentity, identity)
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
		r.POST("/api/tasks", IdempotencyMiddleware(c, time.Minute, logger.NewNoopLogger()), func(c *gin.Context) {
			created++
			c.Status(http.StatusCreated)
		})
		return r, &created
	}

	post := func(r *gin.Engine, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"title":"x"}`))
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("should reject a replayed key", func(t *testing.T) {
		r, created := newRouter(client)

		assert.Equal(t, http.StatusCreated, post(r, "k-1").Code)
		w := post(r, "k-1")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"error":"Duplicate request"}`, w.Body.String())
		assert.Equal(t, 1, *created)
		assert.True(t, mr.Exists("dashgate:idempotency:user:u1:k-1"))
	})

	t.Run("should release the key when the create fails", func(t *testing.T) {
		statuses := []int{http.StatusInternalServerError, http.StatusBadRequest, http.StatusCreated}
		calls := 0
		r := gin.New()
		r.POST("/api/tasks", IdempotencyMiddleware(client, time.Minute, logger.NewNoopLogger()), func(c *gin.Context) {
			c.Status(statuses[calls])
			calls++
		})

		assert.Equal(t, http.StatusInternalServerError, post(r, "k-retry").Code)
		assert.False(t, mr.Exists("dashgate:idempotency:anonymous:k-retry"))
		assert.Equal(t, http.StatusBadRequest, post(r, "k-retry").Code)
		assert.Equal(t, http.StatusCreated, post(r, "k-retry").Code)
		assert.Equal(t, http.StatusConflict, post(r, "k-retry").Code)
		assert.Equal(t, 3, calls)
		assert.True(t, mr.Exists("dashgate:idempotency:anonymous:k-retry"))
	})

	t.Run("should forget keys after the ttl", func(t *testing.T) {
		r, created := newRouter(client)

		assert.Equal(t, http.StatusCreated, post(r, "k-2").Code)
		mr.FastForward(2 * time.Minute)
		assert.Equal(t, http.StatusCreated, post(r, "k-2").Code)
		assert.Equal(t, 2, *created)
	})

	t.Run("should pass requests without a key", func(t *testing.T) {
		r, created := newRouter(client)
		post(r, "")
		post(r, "")
		assert.Equal(t, 2, *created)
	})

	t.Run("should reject oversized keys", func(t *testing.T) {
		r, _ := newRouter(client)
		w := post(r, strings.Repeat("k", maxIdempotencyKeyLength+1))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should fail open when redis is unreachable", func(t *testing.T) {
		broken := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
		defer broken.Close()

		r, created := newRouter(broken)
		assert.Equal(t, http.StatusCreated, post(r, "k-3").Code)
		assert.Equal(t, http.StatusCreated, post(r, "k-3").Code)
		assert.Equal(t, 2, *created)
	})

	t.Run("should be disabled without a client", func(t *testing.T) {
		r, created := newRouter(nil)
		post(r, "k-4")
		post(r, "k-4")
		assert.Equal(t, 2, *created)
	})
}

func TestETagCache(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/api/suggestions", ETagCache(300), func(c *gin.Context) {
		c.JSON(http.StatusOK, []string{"plan", "focus"})
	})
	r.GET("/api/missing", ETagCache(300), func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/suggestions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")

	t.Run("should tag successful bodies", func(t *testing.T) {
		assert.NotEmpty(t, etag)
		assert.Equal(t, "private, max-age=300, must-revalidate", w.Header().Get("Cache-Control"))
		assert.JSONEq(t, `["plan","focus"]`, w.Body.String())
	})

	t.Run("should answer 304 for a matching If-None-Match", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/suggestions", nil)
		req.Header.Set("If-None-Match", etag)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotModified, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("should not tag error responses", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/missing", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, w.Header().Get("ETag"))
		assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
	})
}

// stubTracer records span names and returns the no-op span from ctx.
type stubTracer struct{ spans []string }

func (s *stubTracer) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	s.spans = append(s.spans, spanName)
	return ctx, trace.SpanFromContext(ctx)
}

func (s *stubTracer) ExtractTraceContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return ctx
}

func TestObservabilityMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tracer := &stubTracer{}
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(ObservabilityMiddleware(tracer, metrics), AccessLog(logger.NewNoopLogger()))
	r.GET("/api/tasks/:id", func(c *gin.Context) {
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActiveRequests))
		c.Status(http.StatusNoContent)
	})

	for _, path := range []string{"/api/tasks/1", "/api/tasks/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	t.Run("should label requests by route template", func(t *testing.T) {
		assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/api/tasks/:id", "204")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "not_found", "404")))
	})

	t.Run("should balance the in-flight gauge", func(t *testing.T) {
		assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveRequests))
	})

	t.Run("should start one span per request", func(t *testing.T) {
		require.Len(t, tracer.spans, 3)
		assert.Equal(t, "GET /api/tasks/:id", tracer.spans[0])
	})
}
