package middleware

import "strings"

var (
	// staticPrefixes are served without gating or decoration.
	staticPrefixes = []string{"/static", "/assets", "/_next/static", "/_next/image"}
	staticFiles    = map[string]struct{}{
		"/favicon.ico": {},
		"/robots.txt":  {},
		"/logo.svg":    {},
	}

	// operationalPaths are gated and decorated but never charged to a quota.
	operationalPaths = map[string]struct{}{"/metrics": {}}

	publicPrefixes    = []string{"/api/auth", "/api/health"}
	handshakePrefixes = []string{"/api/auth/callback", "/api/auth/signin", "/api/auth/signout", "/api/auth/session"}
)

// hasPathPrefix reports whether path equals prefix or continues it with a
// new segment. "/api/healthz" does not match "/api/health".
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func matchesAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if hasPathPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// IsStaticPath reports whether path is a static asset excluded from the gate.
func IsStaticPath(path string) bool {
	if _, ok := staticFiles[path]; ok {
		return true
	}
	return matchesAny(path, staticPrefixes)
}

// IsAPIPath reports whether path is under /api.
func IsAPIPath(path string) bool {
	return hasPathPrefix(path, "/api")
}

// IsPublicPath reports whether path is reachable without a session.
func IsPublicPath(path string) bool {
	return matchesAny(path, publicPrefixes)
}

// IsHandshakePath reports whether path belongs to the OAuth sign-in flow.
func IsHandshakePath(path string) bool {
	return matchesAny(path, handshakePrefixes)
}

// IsOperationalPath reports whether path serves scrapers rather than users.
func IsOperationalPath(path string) bool {
	_, ok := operationalPaths[path]
	return ok
}

// ShouldSkipThrottle reports whether path bypasses the identity pools.
// Handshake paths, public endpoints and the metrics endpoint are never
// charged to a caller's quota.
func ShouldSkipThrottle(path string) bool {
	return IsHandshakePath(path) || IsPublicPath(path) || IsOperationalPath(path)
}
