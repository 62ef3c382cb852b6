// Package session issues and verifies dashboard session credentials.
package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

var _ service.SessionManager = (*JWTManager)(nil)

// JWTManager signs sessions as HS256 JWTs with the shared session secret.
type JWTManager struct {
	secret     []byte
	maxAge     time.Duration
	revocation service.RevocationStore
	log        logger.Logger
	now        func() time.Time
}

// NewJWTManager creates a new JWTManager. revocation may be nil.
func NewJWTManager(secret string, maxAge time.Duration, revocation service.RevocationStore, log logger.Logger) (*JWTManager, error) {
	if secret == "" {
		return nil, errors.ErrInvalidConfig.WithDetail("session secret is empty")
	}
	if maxAge <= 0 {
		maxAge = constants.DefaultSessionMaxAge
	}
	return &JWTManager{
		secret:     []byte(secret),
		maxAge:     maxAge,
		revocation: revocation,
		log:        log,
		now:        time.Now,
	}, nil
}

// Issue creates and signs a session for user.
func (m *JWTManager) Issue(ctx context.Context, user *models.User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.maxAge)

	claims := models.SessionClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    constants.SessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		m.log.Error(ctx, "Failed to sign session", err)
		return "", time.Time{}, errors.ErrInternalServer.WithError(err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a session credential.
// Unusable credentials yield (nil, nil); only revocation lookup failures are errors.
func (m *JWTManager) Verify(ctx context.Context, credential string) (*models.SessionClaims, error) {
	if credential == "" {
		return nil, nil
	}

	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(constants.SessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		m.log.Debug(ctx, "Rejected session credential", logger.Err(err))
		return nil, nil
	}
	if claims.Subject == "" {
		return nil, nil
	}

	if m.revocation != nil && claims.ID != "" {
		revoked, err := m.revocation.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, errors.ErrServiceUnavailable.WithError(err)
		}
		if revoked {
			return nil, nil
		}
	}
	return claims, nil
}

// Revoke marks a session as unusable until it would have expired anyway.
func (m *JWTManager) Revoke(ctx context.Context, claims *models.SessionClaims) error {
	if m.revocation == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := m.maxAge
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(m.now())
	}
	if ttl <= 0 {
		return nil
	}
	return m.revocation.Revoke(ctx, claims.ID, ttl)
}
