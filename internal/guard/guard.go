// Package guard classifies browser navigation paths and decides whether to
// let a request through or redirect it. It is pure policy; the HTTP wiring
// lives in the httpx package.
package guard

import (
	"net/url"
	"strings"
)

// Classification buckets a path by access policy.
type Classification int

const (
	Public Classification = iota
	AuthOnly
	Protected
)

// Decision is the outcome of evaluating a navigation.
type Decision int

const (
	Allow Decision = iota
	RedirectToLogin
	RedirectToApp
)

// Guard holds the configured route sets. The protected and auth-only sets
// must be disjoint; overlapping prefixes resolve as protected.
type Guard struct {
	protected []string
	authOnly  []string
	loginPath string
	appPath   string
}

// New constructs a Guard from prefix sets and redirect targets.
func New(protected, authOnly []string, loginPath, appPath string) Guard {
	if loginPath == "" {
		loginPath = "/login"
	}
	if appPath == "" {
		appPath = "/app"
	}
	return Guard{
		protected: protected,
		authOnly:  authOnly,
		loginPath: loginPath,
		appPath:   appPath,
	}
}

// Exempt reports whether a path is outside guard jurisdiction entirely:
// the machine-to-machine surface and static assets. The guard only ever
// intercepts browser navigations.
func Exempt(path string) bool {
	for _, prefix := range []string{"/auth/", "/proxy/", "/static/", "/assets/", "/_next/"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	switch path {
	case "/healthz", "/metrics", "/favicon.ico":
		return true
	}
	// Paths with a file extension are asset fetches, not navigations.
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 && strings.Contains(path[idx:], ".") {
		return true
	}
	return false
}

// Classify buckets a path by prefix match against the configured sets.
func (g Guard) Classify(path string) Classification {
	for _, prefix := range g.protected {
		if matchesPrefix(path, prefix) {
			return Protected
		}
	}
	for _, prefix := range g.authOnly {
		if matchesPrefix(path, prefix) {
			return AuthOnly
		}
	}
	return Public
}

// Decide applies the redirect matrix for a navigation.
func (g Guard) Decide(path string, tokenValid bool) Decision {
	switch g.Classify(path) {
	case Protected:
		if tokenValid {
			return Allow
		}
		return RedirectToLogin
	case AuthOnly:
		if tokenValid {
			return RedirectToApp
		}
		return Allow
	default:
		return Allow
	}
}

// LoginURL builds the login redirect target, preserving the original path
// as a return query parameter.
func (g Guard) LoginURL(originalPath string) string {
	return g.loginPath + "?redirect=" + url.QueryEscape(originalPath)
}

// AppURL is the redirect target for authenticated users hitting auth-only
// pages.
func (g Guard) AppURL() string {
	return g.appPath
}

func matchesPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	// "/app" matches "/app" and "/app/x" but not "/application".
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
