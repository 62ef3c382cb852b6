package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appservice "github.com/turtacn/dashgate/internal/application/service"
	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/internal/infrastructure/ai"
	"github.com/turtacn/dashgate/internal/infrastructure/audit"
	"github.com/turtacn/dashgate/internal/infrastructure/monitoring"
	"github.com/turtacn/dashgate/internal/infrastructure/persistence/database"
	"github.com/turtacn/dashgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/dashgate/internal/infrastructure/session"
	"github.com/turtacn/dashgate/internal/interfaces/http/handlers"
	"github.com/turtacn/dashgate/internal/interfaces/http/middleware"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/logger"
)

// fakeProvider accepts the code "good-code".
type fakeProvider struct{}

func (fakeProvider) Name() string { return "google" }

func (fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (fakeProvider) Exchange(ctx context.Context, code string) (*models.ProviderIdentity, error) {
	if code != "good-code" {
		return nil, assert.AnError
	}
	return &models.ProviderIdentity{
		Provider:          "google",
		ProviderAccountID: "g-1",
		Email:             "grace@example.com",
		EmailVerified:     true,
		Name:              "Grace Hopper",
		AccessToken:       "access",
		RefreshToken:      "refresh",
		Expiry:            time.Now().Add(time.Hour),
	}, nil
}

type testServer struct {
	router *Router
	cfg    *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNoopLogger()

	cfg := &config.Config{
		Mode: constants.ModeTest,
		Server: config.ServerConfig{
			AllowedOrigins:  []string{"http://localhost:3000"},
			ShutdownTimeout: time.Second,
		},
		Gate:    config.GateConfig{AuthenticatedQuota: 50, AnonymousQuota: 10, WindowSeconds: 60, Backend: "memory"},
		Session: config.SessionConfig{Secret: "test-secret-test-secret-test-secret", MaxAge: time.Hour},
		Cost:    config.CostConfig{MonthlyLimit: 50000, PricePer1K: 0.0008, InitialUsage: 2500},
	}

	conn, err := database.NewDBConnection(ctx, &config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:", AutoMigrate: true}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	sink := audit.NewLogSink(log, metrics)

	sessions, err := session.NewJWTManager(cfg.Session.Secret, cfg.Session.MaxAge, session.NewMemoryRevocationStore(), log)
	require.NoError(t, err)

	pools, err := ratelimit.NewPools(&cfg.Gate, nil, log)
	require.NoError(t, err)

	gate, err := middleware.NewGate(middleware.GateOptions{
		Mode:     cfg.Mode,
		Verifier: sessions,
		Pools:    pools.RateLimitPools,
		Events:   sink,
		Metrics:  metrics,
		Logger:   log,
	})
	require.NoError(t, err)

	userRepo := database.NewUserRepository(conn.DB(), log)
	taskRepo := database.NewTaskRepository(conn.DB(), log)
	cost := appservice.NewCostTracker(&cfg.Cost, func(int) int { return 0 })

	h := Handlers{
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{"database": conn}, cfg.Mode, log),
		Auth: handlers.NewAuthHandler(
			appservice.NewAuthAppService([]service.IdentityProvider{fakeProvider{}}, userRepo, sessions, sink, log),
			handlers.CookieOptions{MaxAge: cfg.Session.MaxAge},
			func() (string, error) { return "state-xyz", nil },
			log,
		),
		Tasks:    handlers.NewTaskHandler(appservice.NewTaskAppService(taskRepo, nil, log)),
		Insights: handlers.NewInsightHandler(appservice.NewInsightAppService(ai.NewTaskEnhancer(nil, cost, metrics, log), cost)),
	}

	r := NewRouter(cfg, log, h, Middlewares{
		Gate:      gate.Handler(),
		AccessLog: middleware.AccessLog(log),
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &testServer{router: r, cfg: cfg}
}

func (s *testServer) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set(constants.HeaderForwardedFor, "1.2.3.4")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.Engine().ServeHTTP(w, req)
	return w
}

func (s *testServer) signIn(t *testing.T) *http.Cookie {
	t.Helper()
	w := s.do(http.MethodGet, "/api/auth/signin/google", "")
	require.Equal(t, http.StatusFound, w.Code)

	var state *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == constants.OAuthStateCookieName {
			state = c
		}
	}
	require.NotNil(t, state)

	w = s.do(http.MethodGet, "/api/auth/callback/google?code=good-code&state="+state.Value, "", state)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/dashboard", w.Header().Get("Location"))

	for _, c := range w.Result().Cookies() {
		if c.Name == constants.SessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestRouter_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	t.Run("should reject the task list without a session", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/tasks", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, `{"error":"Unauthorized"}`, w.Body.String())
	})

	cookie := s.signIn(t)

	t.Run("should describe the session", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/auth/session", "", cookie)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"email":"grace@example.com"`)
	})

	t.Run("should create and list tasks", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/tasks", `{"title":"Prepare quarterly presentation"}`, cookie)
		require.Equal(t, http.StatusCreated, w.Code)

		var created models.Task
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, models.TaskPriorityMedium, created.Priority)
		assert.Equal(t, models.TaskStatusTodo, created.Status)
		assert.Equal(t, models.DefaultSubtasks, created.Subtasks)

		w = s.do(http.MethodPut, "/api/tasks/"+created.ID, `{"status":"in-progress"}`, cookie)
		assert.Equal(t, http.StatusOK, w.Code)

		w = s.do(http.MethodGet, "/api/tasks", "", cookie)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"in-progress"`)
		assert.Equal(t, "50", w.Header().Get(constants.HeaderRateLimitLimit))
		assert.Equal(t, "47", w.Header().Get(constants.HeaderRateLimitRemaining))

		w = s.do(http.MethodDelete, "/api/tasks/"+created.ID, "", cookie)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
	})

	t.Run("should answer enhancement with the fallback plan when AI is disabled", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/suggestions/enhance", `{"taskTitle":"Write report"}`, cookie)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"refinedTitle":"Write report","effort":3,"subtasks":["Research requirements","Implementation","Testing"],"suggestedTime":"When you have time","blockers":[]}`, w.Body.String())
	})

	t.Run("should cache suggestions by etag", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/suggestions", "", cookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("ETag"))
	})

	t.Run("should revoke the session on sign out", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/auth/signout", "", cookie)
		assert.Equal(t, http.StatusOK, w.Code)

		w = s.do(http.MethodGet, "/api/tasks", "", cookie)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = s.do(http.MethodGet, "/api/auth/session", "", cookie)
		assert.JSONEq(t, `{}`, w.Body.String())
	})
}

func TestRouter_PublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	t.Run("should serve health without a session and never throttle it", func(t *testing.T) {
		for i := 0; i < 30; i++ {
			w := s.do(http.MethodGet, "/api/health", "")
			require.Equal(t, http.StatusOK, w.Code)
		}
		w := s.do(http.MethodGet, "/api/health", "")
		assert.Contains(t, w.Body.String(), `"database":"ok"`)
		assert.Equal(t, "DENY", w.Header().Get(constants.HeaderFrameOptions))
		assert.NotEmpty(t, w.Header().Get(constants.HeaderRequestID))
	})

	t.Run("should redirect failed callbacks to the login page", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/auth/callback/google?code=bad&state=x", "", &http.Cookie{Name: constants.OAuthStateCookieName, Value: "x"})
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login?error=OAuthCallback", w.Header().Get("Location"))
	})

	t.Run("should expose prometheus metrics", func(t *testing.T) {
		w := s.do(http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "dashgate_gate_decisions_total")
	})

	t.Run("should tag preflights and rejected origins with a request id", func(t *testing.T) {
		preflight := func(origin string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			s.router.Engine().ServeHTTP(w, req)
			return w
		}

		w := preflight("http://localhost:3000")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, w.Header().Get(constants.HeaderRequestID))

		w = preflight("https://evil.example")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NotEmpty(t, w.Header().Get(constants.HeaderRequestID))
	})

	t.Run("should answer unknown routes with 404", func(t *testing.T) {
		w := s.do(http.MethodGet, "/nowhere", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
	})
}
