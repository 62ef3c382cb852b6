package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/internal/application/service"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

var alice = models.Authenticated("user-1", "1.2.3.4", &models.SessionClaims{
	Email:            "alice@example.com",
	RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ID: "jti-1"},
})

func serve(r *gin.Engine, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTaskHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	setup := func(identity models.CallerIdentity) (*gin.Engine, *MockTaskService) {
		tasks := new(MockTaskService)
		h := NewTaskHandler(tasks)
		r := gin.New()
		r.Use(asCaller(identity))
		r.GET("/api/tasks", h.List)
		r.POST("/api/tasks", h.Create)
		r.PUT("/api/tasks/:id", h.UpdateStatus)
		r.DELETE("/api/tasks/:id", h.Delete)
		return r, tasks
	}

	t.Run("should list the caller's tasks", func(t *testing.T) {
		r, tasks := setup(alice)
		tasks.On("List", mock.Anything, "user-1").Return([]*models.Task{{ID: "t1", Title: "Write report"}}, nil)

		w := serve(r, http.MethodGet, "/api/tasks", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"title":"Write report"`)
		tasks.AssertExpectations(t)
	})

	t.Run("should create a task with 201", func(t *testing.T) {
		r, tasks := setup(alice)
		tasks.On("Create", mock.Anything, "user-1", mock.MatchedBy(func(req *dto.CreateTaskRequest) bool {
			return req.Title == "Plan sprint" && req.Priority == models.TaskPriorityHigh
		})).Return(&models.Task{ID: "t2", Title: "Plan sprint", Status: models.TaskStatusTodo}, nil)

		w := serve(r, http.MethodPost, "/api/tasks", `{"title":"Plan sprint","priority":"high"}`)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"todo"`)
	})

	t.Run("should surface validation errors", func(t *testing.T) {
		r, tasks := setup(alice)
		tasks.On("Create", mock.Anything, "user-1", mock.Anything).Return(nil, errors.ErrInvalidRequest("Title is required"))

		w := serve(r, http.MethodPost, "/api/tasks", `{"title":"  "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Title is required"}`, w.Body.String())
	})

	t.Run("should reject malformed bodies", func(t *testing.T) {
		r, _ := setup(alice)
		w := serve(r, http.MethodPost, "/api/tasks", `{"title":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should update the status", func(t *testing.T) {
		r, tasks := setup(alice)
		tasks.On("UpdateStatus", mock.Anything, "user-1", "t1", &dto.UpdateTaskRequest{Status: models.TaskStatusCompleted}).
			Return(&models.Task{ID: "t1", Status: models.TaskStatusCompleted}, nil)

		w := serve(r, http.MethodPut, "/api/tasks/t1", `{"status":"completed"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"completed"`)
	})

	t.Run("should return 404 for unknown tasks", func(t *testing.T) {
		r, tasks := setup(alice)
		tasks.On("Delete", mock.Anything, "user-1", "nope").Return(errors.ErrResourceNotFound("Task"))

		w := serve(r, http.MethodDelete, "/api/tasks/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Task not found"}`, w.Body.String())
	})

	t.Run("should confirm deletes", func(t *testing.T) {
		r, tasks := setup(alice)
		tasks.On("Delete", mock.Anything, "user-1", "t1").Return(nil)

		w := serve(r, http.MethodDelete, "/api/tasks/t1", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
	})

	t.Run("should reject anonymous callers", func(t *testing.T) {
		r, tasks := setup(models.Anonymous("1.2.3.4"))
		w := serve(r, http.MethodGet, "/api/tasks", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		tasks.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})
}

func TestInsightHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	setup := func() (*gin.Engine, *MockInsightService) {
		insights := new(MockInsightService)
		h := NewInsightHandler(insights)
		r := gin.New()
		r.GET("/api/suggestions", h.Suggestions)
		r.POST("/api/suggestions", h.Enhance)
		r.POST("/api/suggestions/enhance", h.Enhance)
		r.GET("/api/cost", h.Cost)
		return r, insights
	}

	t.Run("should list suggestions", func(t *testing.T) {
		r, insights := setup()
		insights.On("Suggestions", mock.Anything).Return([]models.Suggestion{{ID: "1", Type: models.SuggestionMeetingPrep}})

		w := serve(r, http.MethodGet, "/api/suggestions", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":"1"`)
	})

	t.Run("should enhance on both routes", func(t *testing.T) {
		r, insights := setup()
		plan := models.FallbackPlan("Write report")
		insights.On("Enhance", mock.Anything, "Write report").Return(plan, nil)

		for _, path := range []string{"/api/suggestions", "/api/suggestions/enhance"} {
			w := serve(r, http.MethodPost, path, `{"taskTitle":"Write report"}`)
			assert.Equal(t, http.StatusOK, w.Code, path)
			assert.Contains(t, w.Body.String(), `"refinedTitle":"Write report"`)
		}
	})

	t.Run("should require a task title", func(t *testing.T) {
		r, insights := setup()
		insights.On("Enhance", mock.Anything, "").Return(models.TaskPlan{}, errors.ErrInvalidRequest("Task title is required"))

		w := serve(r, http.MethodPost, "/api/suggestions/enhance", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Task title is required"}`, w.Body.String())
	})

	t.Run("should report cost", func(t *testing.T) {
		r, insights := setup()
		insights.On("Cost", mock.Anything).Return(models.CostData{Tokens: 2550, Cost: 0.00204, MonthlyLimit: 50000, UsagePercentage: 5.1})

		w := serve(r, http.MethodGet, "/api/cost", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"tokens":2550,"cost":0.00204,"monthlyLimit":50000,"usagePercentage":5.1}`, w.Body.String())
	})
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	route := func(h *HealthHandler) *gin.Engine {
		r := gin.New()
		r.GET("/api/health", h.HealthCheck)
		return r
	}

	t.Run("should report healthy dependencies", func(t *testing.T) {
		h := NewHealthHandler(map[string]Pinger{"database": stubPinger{}, "redis": nil}, constants.ModeProduction, logger.NewNoopLogger())
		w := serve(route(h), http.MethodGet, "/api/health", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
		assert.Contains(t, w.Body.String(), `"environment":"production"`)
		assert.Contains(t, w.Body.String(), `"version":"`+constants.ServiceVersion+`"`)
		assert.NotContains(t, w.Body.String(), `"redis"`)
	})

	t.Run("should return 503 when a probe fails", func(t *testing.T) {
		h := NewHealthHandler(map[string]Pinger{"database": stubPinger{}, "redis": stubPinger{err: errProbe}}, constants.ModeTest, logger.NewNoopLogger())
		w := serve(route(h), http.MethodGet, "/api/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
		assert.Contains(t, w.Body.String(), `"redis":"error: connection refused"`)
		assert.Contains(t, w.Body.String(), `"database":"ok"`)
	})
}

func TestAuthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	setup := func(identity models.CallerIdentity, cookies CookieOptions) (*gin.Engine, *MockAuthService) {
		auth := new(MockAuthService)
		h := NewAuthHandler(auth, cookies, func() (string, error) { return "state-123", nil }, logger.NewNoopLogger())
		r := gin.New()
		r.Use(asCaller(identity))
		r.GET("/api/auth/signin/:provider", h.SignIn)
		r.GET("/api/auth/callback/:provider", h.Callback)
		r.POST("/api/auth/signout", h.SignOut)
		r.GET("/api/auth/session", h.Session)
		return r, auth
	}
	withState := func(state string) func(*http.Request) {
		return func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: constants.OAuthStateCookieName, Value: state})
		}
	}
	cookie := func(w *httptest.ResponseRecorder, name string) *http.Cookie {
		for _, c := range w.Result().Cookies() {
			if c.Name == name {
				return c
			}
		}
		return nil
	}

	t.Run("should redirect to the provider with a state cookie", func(t *testing.T) {
		r, auth := setup(models.Anonymous("1.2.3.4"), CookieOptions{MaxAge: time.Hour})
		auth.On("SignInURL", mock.Anything, "google", "state-123").Return("https://accounts.example.com/auth?state=state-123", nil)

		w := serve(r, http.MethodGet, "/api/auth/signin/google", "")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://accounts.example.com/auth?state=state-123", w.Header().Get("Location"))
		state := cookie(w, constants.OAuthStateCookieName)
		require.NotNil(t, state)
		assert.Equal(t, "state-123", state.Value)
		assert.True(t, state.HttpOnly)
	})

	t.Run("should redirect unknown providers to the login page", func(t *testing.T) {
		r, auth := setup(models.Anonymous("1.2.3.4"), CookieOptions{})
		auth.On("SignInURL", mock.Anything, "myspace", "state-123").Return("", service.ErrSignInProvider)

		w := serve(r, http.MethodGet, "/api/auth/signin/myspace", "")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login?error=OAuthSignin", w.Header().Get("Location"))
	})

	t.Run("should set the session cookie and redirect to the dashboard", func(t *testing.T) {
		r, auth := setup(models.Anonymous("1.2.3.4"), CookieOptions{Secure: true, MaxAge: time.Hour})
		auth.On("CompleteSignIn", mock.Anything, "google", "code-1").
			Return(&dto.SignInResult{Token: "session-jwt", UserID: "user-1"}, nil)

		w := serve(r, http.MethodGet, "/api/auth/callback/google?code=code-1&state=state-123", "", withState("state-123"))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/dashboard", w.Header().Get("Location"))

		session := cookie(w, constants.SecureSessionCookieName)
		require.NotNil(t, session)
		assert.Equal(t, "session-jwt", session.Value)
		assert.True(t, session.Secure)
		assert.Equal(t, 3600, session.MaxAge)
	})

	t.Run("should reject a state mismatch", func(t *testing.T) {
		r, auth := setup(models.Anonymous("1.2.3.4"), CookieOptions{})

		w := serve(r, http.MethodGet, "/api/auth/callback/google?code=code-1&state=forged", "", withState("state-123"))
		assert.Equal(t, "/login?error=OAuthCallback", w.Header().Get("Location"))
		auth.AssertNotCalled(t, "CompleteSignIn", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should carry the failure code to the login page", func(t *testing.T) {
		r, auth := setup(models.Anonymous("1.2.3.4"), CookieOptions{})
		auth.On("CompleteSignIn", mock.Anything, "google", "code-1").Return(nil, service.ErrProfileCreation)

		w := serve(r, http.MethodGet, "/api/auth/callback/google?code=code-1&state=state-123", "", withState("state-123"))
		assert.Equal(t, "/login?error=ProfileCreationFailed", w.Header().Get("Location"))
		assert.Nil(t, cookie(w, constants.SessionCookieName))
	})

	t.Run("should revoke and clear the session on sign out", func(t *testing.T) {
		r, auth := setup(alice, CookieOptions{})
		auth.On("SignOut", mock.Anything, alice.Session).Return(nil)

		w := serve(r, http.MethodPost, "/api/auth/signout", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
		cleared := cookie(w, constants.SessionCookieName)
		require.NotNil(t, cleared)
		assert.Equal(t, -1, cleared.MaxAge)
	})

	t.Run("should describe the current session", func(t *testing.T) {
		r, auth := setup(alice, CookieOptions{})
		expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		auth.On("Session", alice.Session).Return(&dto.SessionResponse{
			User:    dto.SessionUser{ID: "user-1", Email: "alice@example.com"},
			Expires: expires,
		})

		w := serve(r, http.MethodGet, "/api/auth/session", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"email":"alice@example.com"`)
		assert.Contains(t, w.Body.String(), `"expires":"2026-04-01T00:00:00Z"`)
	})

	t.Run("should answer {} without a session", func(t *testing.T) {
		r, auth := setup(models.Anonymous("1.2.3.4"), CookieOptions{})
		auth.On("Session", (*models.SessionClaims)(nil)).Return(nil)

		w := serve(r, http.MethodGet, "/api/auth/session", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{}`, w.Body.String())
	})
}
