package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/internal/application/service"
	"github.com/turtacn/dashgate/internal/interfaces/http/middleware"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

const (
	dashboardPath  = "/dashboard"
	loginPath      = "/login"
	stateCookieTTL = 10 * time.Minute
)

// CookieOptions controls how the session cookie is written.
type CookieOptions struct {
	// Secure selects the __Secure- cookie name and the Secure attribute.
	Secure bool
	MaxAge time.Duration
}

func (o CookieOptions) sessionCookieName() string {
	if o.Secure {
		return constants.SecureSessionCookieName
	}
	return constants.SessionCookieName
}

// AuthHandler handles the OAuth sign-in flow and session endpoints.
type AuthHandler struct {
	auth     service.AuthAppService
	cookies  CookieOptions
	newState func() (string, error)
	log      logger.Logger
}

// NewAuthHandler creates a new AuthHandler. newState generates OAuth state values.
func NewAuthHandler(auth service.AuthAppService, cookies CookieOptions, newState func() (string, error), log logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		cookies:  cookies,
		newState: newState,
		log:      log,
	}
}

// SignIn handles GET /api/auth/signin/:provider by redirecting to the
// provider's consent page.
func (h *AuthHandler) SignIn(c *gin.Context) {
	state, err := h.newState()
	if err != nil {
		h.log.ForContext(c.Request.Context()).Error(c.Request.Context(), "Failed to generate OAuth state", err)
		h.redirectToLogin(c, service.ErrSignInProvider)
		return
	}

	target, err := h.auth.SignInURL(c.Request.Context(), c.Param("provider"), state)
	if err != nil {
		h.redirectToLogin(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.OAuthStateCookieName, state, int(stateCookieTTL.Seconds()), "/api/auth", "", h.cookies.Secure, true)
	c.Redirect(http.StatusFound, target)
}

// Callback handles GET /api/auth/callback/:provider.
func (h *AuthHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.log.ForContext(ctx)

	expected, _ := c.Cookie(constants.OAuthStateCookieName)
	c.SetCookie(constants.OAuthStateCookieName, "", -1, "/api/auth", "", h.cookies.Secure, true)

	if providerErr := c.Query("error"); providerErr != "" {
		log.Warn(ctx, "OAuth provider returned an error", logger.String("error", providerErr))
		h.redirectToLogin(c, service.ErrSignInCallback)
		return
	}
	if expected == "" || c.Query("state") != expected {
		log.Warn(ctx, "OAuth state mismatch", logger.String("provider", c.Param("provider")))
		h.redirectToLogin(c, service.ErrSignInCallback)
		return
	}

	result, err := h.auth.CompleteSignIn(ctx, c.Param("provider"), c.Query("code"))
	if err != nil {
		h.redirectToLogin(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookies.sessionCookieName(), result.Token, int(h.cookies.MaxAge.Seconds()), "/", "", h.cookies.Secure, true)
	c.Redirect(http.StatusFound, dashboardPath)
}

// SignOut handles POST /api/auth/signout.
func (h *AuthHandler) SignOut(c *gin.Context) {
	identity, _ := middleware.CallerFromContext(c)
	if err := h.auth.SignOut(c.Request.Context(), identity.Session); err != nil {
		dto.SendError(c, err)
		return
	}

	c.SetCookie(h.cookies.sessionCookieName(), "", -1, "/", "", h.cookies.Secure, true)
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

// Session handles GET /api/auth/session. Anonymous callers get {}.
func (h *AuthHandler) Session(c *gin.Context) {
	identity, _ := middleware.CallerFromContext(c)
	session := h.auth.Session(identity.Session)
	if session == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, session)
}

// redirectToLogin sends the browser to the login page with the sign-in
// error code of err.
func (h *AuthHandler) redirectToLogin(c *gin.Context, err error) {
	code := errors.FromError(err).Code
	switch code {
	case service.ErrSignInProvider.Code, service.ErrSignInCallback.Code, service.ErrSignInAccount.Code,
		service.ErrProfileCreation.Code, service.ErrSessionNotCreated.Code:
	default:
		code = service.ErrSignInCallback.Code
	}
	c.Redirect(http.StatusFound, loginPath+"?"+url.Values{"error": {code}}.Encode())
}
