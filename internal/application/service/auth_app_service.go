package service

import (
	"context"
	"net/http"
	"time"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/repository"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// Sign-in failures. The code is used as the error query parameter of the
// login page redirect.
var (
	ErrSignInProvider    = errors.NewError("OAuthSignin", http.StatusNotFound, "Unknown sign-in provider")
	ErrSignInCallback    = errors.NewError("OAuthCallback", http.StatusUnauthorized, "Sign-in callback failed")
	ErrSignInAccount     = errors.NewError("OAuthCreateAccount", http.StatusInternalServerError, "Account could not be created")
	ErrProfileCreation   = errors.NewError("ProfileCreationFailed", http.StatusInternalServerError, "Profile could not be created")
	ErrSessionNotCreated = errors.NewError("SessionRequired", http.StatusInternalServerError, "Session could not be created")
)

// AuthAppService orchestrates the OAuth sign-in flow and session lifecycle.
// AuthAppService 认证应用服务接口。
type AuthAppService interface {
	// SignInURL returns the provider consent URL for state.
	// SignInURL 返回提供方授权地址。
	SignInURL(ctx context.Context, provider, state string) (string, error)

	// CompleteSignIn exchanges the callback code, resolves the user, ensures a
	// profile, stores the integration token and issues a session.
	// CompleteSignIn 完成登录回调并签发会话。
	CompleteSignIn(ctx context.Context, provider, code string) (*dto.SignInResult, error)

	// SignOut revokes the session described by claims.
	// SignOut 注销会话。
	SignOut(ctx context.Context, claims *models.SessionClaims) error

	// Session describes the current session, or nil for anonymous callers.
	Session(claims *models.SessionClaims) *dto.SessionResponse
}

type authAppServiceImpl struct {
	providers map[string]service.IdentityProvider
	userRepo  repository.UserRepository
	sessions  service.SessionManager
	events    service.SecurityEventSink
	logger    logger.Logger
}

// NewAuthAppService creates a new instance of AuthAppService.
func NewAuthAppService(
	providers []service.IdentityProvider,
	userRepo repository.UserRepository,
	sessions service.SessionManager,
	events service.SecurityEventSink,
	log logger.Logger,
) AuthAppService {
	byName := make(map[string]service.IdentityProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &authAppServiceImpl{
		providers: byName,
		userRepo:  userRepo,
		sessions:  sessions,
		events:    events,
		logger:    log,
	}
}

func (s *authAppServiceImpl) SignInURL(ctx context.Context, provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrSignInProvider
	}
	return p.AuthCodeURL(state), nil
}

func (s *authAppServiceImpl) CompleteSignIn(ctx context.Context, provider, code string) (*dto.SignInResult, error) {
	log := s.logger.ForContext(ctx)

	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrSignInProvider
	}

	identity, err := p.Exchange(ctx, code)
	if err != nil {
		log.Warn(ctx, "OAuth code exchange failed", logger.String("provider", provider), logger.Err(err))
		s.record(ctx, constants.SecurityEventAuthFailure, "OAuth code exchange failed", logger.Fields{"provider": provider})
		return nil, ErrSignInCallback.WithError(err)
	}

	log.Info(ctx, "OAuth sign in attempt",
		logger.String("provider", provider),
		logger.String("account_id", identity.ProviderAccountID),
	)

	user, isNew, err := s.userRepo.UpsertFromProvider(ctx, identity)
	if err != nil {
		s.record(ctx, constants.SecurityEventAuthFailure, "User could not be resolved", logger.Fields{"provider": provider})
		return nil, ErrSignInAccount.WithError(err)
	}

	if _, _, err := s.userRepo.EnsureProfile(ctx, user); err != nil {
		log.Error(ctx, "Critical sign-in error", err, logger.String("user_id", user.ID))
		return nil, ErrProfileCreation.WithError(err)
	}

	s.storeIntegrationToken(ctx, user, identity)

	token, expiresAt, err := s.sessions.Issue(ctx, user)
	if err != nil {
		log.Error(ctx, "Failed to issue session", err, logger.String("user_id", user.ID))
		return nil, ErrSessionNotCreated.WithError(err)
	}

	log.Info(ctx, "User signed in",
		logger.String("user_id", user.ID),
		logger.String("provider", provider),
		logger.Bool("new_user", isNew),
	)
	event := models.NewSecurityEvent(ctx, constants.SecurityEventAuthSuccess, "User signed in")
	event.UserID = user.ID
	event.Fields = logger.Fields{"provider": provider, "new_user": isNew}
	s.events.Record(ctx, event)

	return &dto.SignInResult{Token: token, ExpiresAt: expiresAt, UserID: user.ID, NewUser: isNew}, nil
}

// storeIntegrationToken keeps the provider token for mail and calendar calls.
// Failures are logged and do not block sign-in.
func (s *authAppServiceImpl) storeIntegrationToken(ctx context.Context, user *models.User, identity *models.ProviderIdentity) {
	token := &models.IntegrationToken{
		UserID:       user.ID,
		Provider:     identity.Provider,
		AccessToken:  identity.AccessToken,
		RefreshToken: identity.RefreshToken,
	}
	if !identity.Expiry.IsZero() {
		expiry := identity.Expiry
		token.Expiry = &expiry
	}

	if err := s.userRepo.SaveIntegrationToken(ctx, token); err != nil {
		s.logger.ForContext(ctx).Warn(ctx, "Integration token not stored", logger.String("user_id", user.ID), logger.Err(err))
		return
	}

	event := models.NewSecurityEvent(ctx, constants.SecurityEventTokenRefresh, "Integration token stored")
	event.UserID = user.ID
	event.Fields = logger.Fields{"provider": identity.Provider, "has_refresh": identity.RefreshToken != ""}
	s.events.Record(ctx, event)
}

func (s *authAppServiceImpl) SignOut(ctx context.Context, claims *models.SessionClaims) error {
	if claims == nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims); err != nil {
		return errors.ErrServiceUnavailable.WithError(err)
	}
	s.logger.ForContext(ctx).Info(ctx, "User signed out", logger.String("user_id", claims.Subject))
	return nil
}

func (s *authAppServiceImpl) Session(claims *models.SessionClaims) *dto.SessionResponse {
	if claims == nil {
		return nil
	}
	resp := &dto.SessionResponse{
		User: dto.SessionUser{ID: claims.Subject, Email: claims.Email, Name: claims.Name},
	}
	if claims.ExpiresAt != nil {
		resp.Expires = claims.ExpiresAt.Time.UTC().Truncate(time.Second)
	}
	return resp
}

func (s *authAppServiceImpl) record(ctx context.Context, eventType constants.SecurityEventType, message string, fields logger.Fields) {
	event := models.NewSecurityEvent(ctx, eventType, message)
	event.Fields = fields
	s.events.Record(ctx, event)
}
