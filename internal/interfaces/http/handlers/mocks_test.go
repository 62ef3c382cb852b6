package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/pkg/constants"
)

// MockTaskService is a mock of service.TaskAppService.
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) List(ctx context.Context, userID string) ([]*models.Task, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTaskService) Create(ctx context.Context, userID string, req *dto.CreateTaskRequest) (*models.Task, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) UpdateStatus(ctx context.Context, userID, taskID string, req *dto.UpdateTaskRequest) (*models.Task, error) {
	args := m.Called(ctx, userID, taskID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) Delete(ctx context.Context, userID, taskID string) error {
	return m.Called(ctx, userID, taskID).Error(0)
}

// MockInsightService is a mock of service.InsightAppService.
type MockInsightService struct {
	mock.Mock
}

func (m *MockInsightService) Suggestions(ctx context.Context) []models.Suggestion {
	return m.Called(ctx).Get(0).([]models.Suggestion)
}

func (m *MockInsightService) Enhance(ctx context.Context, taskTitle string) (models.TaskPlan, error) {
	args := m.Called(ctx, taskTitle)
	return args.Get(0).(models.TaskPlan), args.Error(1)
}

func (m *MockInsightService) Cost(ctx context.Context) models.CostData {
	return m.Called(ctx).Get(0).(models.CostData)
}

// MockAuthService is a mock of service.AuthAppService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) SignInURL(ctx context.Context, provider, state string) (string, error) {
	args := m.Called(ctx, provider, state)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) CompleteSignIn(ctx context.Context, provider, code string) (*dto.SignInResult, error) {
	args := m.Called(ctx, provider, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SignInResult), args.Error(1)
}

func (m *MockAuthService) SignOut(ctx context.Context, claims *models.SessionClaims) error {
	return m.Called(ctx, claims).Error(0)
}

func (m *MockAuthService) Session(claims *models.SessionClaims) *dto.SessionResponse {
	args := m.Called(claims)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*dto.SessionResponse)
}

// stubPinger fails with err when set.
type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

var errProbe = errors.New("connection refused")

// asCaller stores identity in the request context the way the gate does.
func asCaller(identity models.CallerIdentity) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyIdentity, identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
