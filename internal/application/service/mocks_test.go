package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/dashgate/internal/domain/models"
)

// Mock implementations for dependencies

type MockTaskRepo struct {
	mock.Mock
}

func (m *MockTaskRepo) ListByUser(ctx context.Context, userID string) ([]*models.Task, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTaskRepo) FindByID(ctx context.Context, userID, id string) (*models.Task, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskRepo) Create(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepo) UpdateStatus(ctx context.Context, userID, id string, status models.TaskStatus) (*models.Task, error) {
	args := m.Called(ctx, userID, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskRepo) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepo) UpsertFromProvider(ctx context.Context, identity *models.ProviderIdentity) (*models.User, bool, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.User), args.Bool(1), args.Error(2)
}

func (m *MockUserRepo) EnsureProfile(ctx context.Context, user *models.User) (*models.UserProfile, bool, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.UserProfile), args.Bool(1), args.Error(2)
}

func (m *MockUserRepo) SaveIntegrationToken(ctx context.Context, token *models.IntegrationToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) Verify(ctx context.Context, credential string) (*models.SessionClaims, error) {
	args := m.Called(ctx, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionClaims), args.Error(1)
}

func (m *MockSessionManager) Issue(ctx context.Context, user *models.User) (string, time.Time, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockSessionManager) Revoke(ctx context.Context, claims *models.SessionClaims) error {
	args := m.Called(ctx, claims)
	return args.Error(0)
}

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) Name() string { return "google" }

func (m *MockIdentityProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code string) (*models.ProviderIdentity, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProviderIdentity), args.Error(1)
}

// recordingSink collects security events.
type recordingSink struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func (s *recordingSink) Record(ctx context.Context, event models.SecurityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, string(e.Type))
	}
	return out
}
