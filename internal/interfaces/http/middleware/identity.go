package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/pkg/constants"
)

// extractBearer extracts the token from the Authorization header.
func extractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// SessionCredential returns the raw session credential of r: the secure
// session cookie, the plain session cookie, or a bearer token, in that order.
func SessionCredential(r *http.Request) string {
	for _, name := range []string{constants.SecureSessionCookieName, constants.SessionCookieName} {
		if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return extractBearer(r.Header.Get("Authorization"))
}

// SourceAddress returns the first X-Forwarded-For entry, else X-Real-IP,
// else constants.UnknownAddress.
func SourceAddress(r *http.Request) string {
	if forwarded := r.Header.Get(constants.HeaderForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get(constants.HeaderRealIP)); realIP != "" {
		return realIP
	}
	return constants.UnknownAddress
}

// ResolveIdentity derives the caller identity of r. A missing or invalid
// credential yields an anonymous identity; only a verifier fault is an error.
func ResolveIdentity(ctx context.Context, verifier service.SessionVerifier, r *http.Request) (models.CallerIdentity, error) {
	addr := SourceAddress(r)

	credential := SessionCredential(r)
	if credential == "" {
		return models.Anonymous(addr), nil
	}

	claims, err := verifier.Verify(ctx, credential)
	if err != nil {
		return models.CallerIdentity{}, err
	}
	if claims == nil || claims.Subject == "" {
		return models.Anonymous(addr), nil
	}
	return models.Authenticated(claims.Subject, addr, claims), nil
}

// CallerFromContext returns the identity resolved by the gate.
func CallerFromContext(c *gin.Context) (models.CallerIdentity, bool) {
	identity, ok := c.Request.Context().Value(constants.ContextKeyIdentity).(models.CallerIdentity)
	return identity, ok
}

// RequestIDFromContext returns the request id assigned by the gate.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(constants.ContextKeyRequestID).(string)
	return id
}
