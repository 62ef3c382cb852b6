package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/dashgate/internal/domain/models"
	domainservice "github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

type authFixture struct {
	provider *MockIdentityProvider
	users    *MockUserRepo
	sessions *MockSessionManager
	sink     *recordingSink
	svc      AuthAppService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		provider: new(MockIdentityProvider),
		users:    new(MockUserRepo),
		sessions: new(MockSessionManager),
		sink:     &recordingSink{},
	}
	f.svc = NewAuthAppService([]domainservice.IdentityProvider{f.provider}, f.users, f.sessions, f.sink, logger.NewNoopLogger())
	return f
}

func TestAuthAppService_CompleteSignIn(t *testing.T) {
	ctx := context.Background()
	identity := &models.ProviderIdentity{
		Provider: "google", ProviderAccountID: "g-1", Email: "ada@example.com",
		AccessToken: "at", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour),
	}
	user := &models.User{ID: "u-1", Email: "ada@example.com"}
	expires := time.Now().Add(24 * time.Hour)

	t.Run("should sign in and store the integration token", func(t *testing.T) {
		f := newAuthFixture()
		f.provider.On("Exchange", ctx, "code-1").Return(identity, nil)
		f.users.On("UpsertFromProvider", ctx, identity).Return(user, true, nil)
		f.users.On("EnsureProfile", ctx, user).Return(&models.UserProfile{UserID: "u-1"}, true, nil)
		f.users.On("SaveIntegrationToken", ctx, mock.MatchedBy(func(tok *models.IntegrationToken) bool {
			return tok.UserID == "u-1" && tok.RefreshToken == "rt" && tok.Expiry != nil
		})).Return(nil)
		f.sessions.On("Issue", ctx, user).Return("signed", expires, nil)

		result, err := f.svc.CompleteSignIn(ctx, "google", "code-1")
		require.NoError(t, err)
		assert.Equal(t, "signed", result.Token)
		assert.True(t, result.NewUser)
		assert.Equal(t, []string{"token_refresh", "auth_success"}, f.sink.types())
		f.users.AssertExpectations(t)
	})

	t.Run("should continue when the integration token cannot be stored", func(t *testing.T) {
		f := newAuthFixture()
		f.provider.On("Exchange", ctx, "code-1").Return(identity, nil)
		f.users.On("UpsertFromProvider", ctx, identity).Return(user, false, nil)
		f.users.On("EnsureProfile", ctx, user).Return(&models.UserProfile{}, false, nil)
		f.users.On("SaveIntegrationToken", ctx, mock.Anything).Return(fmt.Errorf("disk full"))
		f.sessions.On("Issue", ctx, user).Return("signed", expires, nil)

		result, err := f.svc.CompleteSignIn(ctx, "google", "code-1")
		require.NoError(t, err)
		assert.False(t, result.NewUser)
		assert.Equal(t, []string{"auth_success"}, f.sink.types())
	})

	t.Run("should fail with ProfileCreationFailed", func(t *testing.T) {
		f := newAuthFixture()
		f.provider.On("Exchange", ctx, "code-1").Return(identity, nil)
		f.users.On("UpsertFromProvider", ctx, identity).Return(user, true, nil)
		f.users.On("EnsureProfile", ctx, user).Return(nil, false, errors.ErrDatabase)

		_, err := f.svc.CompleteSignIn(ctx, "google", "code-1")
		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "ProfileCreationFailed", appErr.Code)
		f.sessions.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	})

	t.Run("should record an auth failure when the exchange fails", func(t *testing.T) {
		f := newAuthFixture()
		f.provider.On("Exchange", ctx, "bad").Return(nil, fmt.Errorf("invalid_grant"))

		_, err := f.svc.CompleteSignIn(ctx, "google", "bad")
		assert.True(t, errors.Is(err, ErrSignInCallback))
		assert.Equal(t, []string{"auth_failure"}, f.sink.types())
	})

	t.Run("should reject an unknown provider", func(t *testing.T) {
		f := newAuthFixture()
		_, err := f.svc.CompleteSignIn(ctx, "myspace", "code")
		assert.True(t, errors.Is(err, ErrSignInProvider))

		_, err = f.svc.SignInURL(ctx, "myspace", "state")
		assert.True(t, errors.Is(err, ErrSignInProvider))
	})
}

func TestAuthAppService_Session(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	url, err := f.svc.SignInURL(ctx, "google", "abc")
	require.NoError(t, err)
	assert.Contains(t, url, "state=abc")

	assert.Nil(t, f.svc.Session(nil))

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	claims := &models.SessionClaims{
		Email:            "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: jwt.NewNumericDate(exp)},
	}
	session := f.svc.Session(claims)
	require.NotNil(t, session)
	assert.Equal(t, "u-1", session.User.ID)
	assert.Equal(t, exp, session.Expires)

	f.sessions.On("Revoke", ctx, claims).Return(nil)
	require.NoError(t, f.svc.SignOut(ctx, claims))
	require.NoError(t, f.svc.SignOut(ctx, nil))
	f.sessions.AssertNumberOfCalls(t, "Revoke", 1)
}
