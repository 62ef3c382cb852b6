package middleware

import (
	"net/http"
	"strings"

	"github.com/turtacn/dashgate/pkg/constants"
)

var baseCSPDirectives = []string{
	"default-src 'self'",
	"script-src 'self' 'unsafe-eval' 'unsafe-inline' https://accounts.google.com",
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com",
	"font-src 'self' https://fonts.gstatic.com",
	"img-src 'self' data: https: blob:",
	"connect-src 'self' https://generativelanguage.googleapis.com https://accounts.google.com https://www.googleapis.com",
	"frame-src 'self' https://accounts.google.com",
}

var trustedTypesDirectives = []string{
	"trusted-types default",
	"require-trusted-types-for 'script'",
}

const (
	frameOptions       = "DENY"
	contentTypeOptions = "nosniff"
	referrerPolicy     = "strict-origin-when-cross-origin"
	permissionsPolicy  = "camera=(), microphone=(), geolocation=(), interest-cohort=()"
	strictTransport    = "max-age=31536000; includeSubDomains; preload"
)

// SecurityHeaders 安全响应头
type SecurityHeaders struct {
	csp  string
	hsts bool
}

// NewSecurityHeaders builds the header set for mode. Trusted-types
// directives are added outside development; HSTS is sent in production only.
func NewSecurityHeaders(mode constants.Mode) *SecurityHeaders {
	directives := append([]string(nil), baseCSPDirectives...)
	if mode != constants.ModeDevelopment {
		directives = append(directives, trustedTypesDirectives...)
	}
	return &SecurityHeaders{
		csp:  strings.Join(directives, "; ") + ";",
		hsts: mode == constants.ModeProduction,
	}
}

// Decorate sets the security headers on h. Each header is Set, so calling
// Decorate repeatedly leaves one value per name.
func (s *SecurityHeaders) Decorate(h http.Header) {
	h.Set(constants.HeaderContentSecurityPolicy, s.csp)
	h.Set(constants.HeaderFrameOptions, frameOptions)
	h.Set(constants.HeaderContentTypeOptions, contentTypeOptions)
	h.Set(constants.HeaderReferrerPolicy, referrerPolicy)
	h.Set(constants.HeaderPermissionsPolicy, permissionsPolicy)
	if s.hsts {
		h.Set(constants.HeaderStrictTransport, strictTransport)
	}
}

// ContentSecurityPolicy returns the policy sent by Decorate.
func (s *SecurityHeaders) ContentSecurityPolicy() string {
	return s.csp
}
