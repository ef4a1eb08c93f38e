// Package session moves the signed token between the gateway and the
// browser. It is the only package that sets cookie transport attributes;
// everything else handles tokens as plain strings.
package session

import (
	"net/http"
	"time"
)

// CookieName is the browser cookie carrying the session token.
const CookieName = "auth_token"

// Store reads and writes the session cookie.
type Store struct {
	ttl    time.Duration
	secure bool
}

// NewStore constructs a Store. secure controls the Secure attribute and
// should be true whenever the gateway serves over TLS.
func NewStore(ttl time.Duration, secure bool) Store {
	return Store{ttl: ttl, secure: secure}
}

// Write sets the token cookie with the session TTL.
func (s Store) Write(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the token from the request cookie, if present.
func (s Store) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Clear expires the cookie immediately. Safe to call without a session.
func (s Store) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
