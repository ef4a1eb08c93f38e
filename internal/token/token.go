// Package token signs and verifies session tokens. A token is the only
// session state the gateway keeps: validity is a function of signature and
// expiry, never of server memory.
package token

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/splax/taskgate/internal/domain"
)

// ErrInvalidToken is returned for every verification failure: malformed
// input, signature mismatch, expiry, missing claims. Callers are never told
// which one, so a stolen token cannot be probed for why it stopped working.
var ErrInvalidToken = errors.New("token: invalid")

const issuer = "taskgate"

// Claims defines the session token payload.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	jwtlib.RegisteredClaims
}

// Codec issues and validates HS256 session tokens with a fixed TTL.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec constructs a Codec. An empty secret is a configuration error and
// must be rejected before the process starts serving.
func NewCodec(secret string, ttl time.Duration) (Codec, error) {
	if secret == "" {
		return Codec{}, errors.New("token: signing secret is required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return Codec{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the validity window applied to signed tokens.
func (c Codec) TTL() time.Duration {
	return c.ttl
}

// Sign issues a token carrying the user's public profile.
func (c Codec) Sign(profile domain.Profile) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: profile.ID,
		Email:  profile.Email,
		Name:   profile.Name,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.ttl)),
		},
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

// Verify checks signature and expiry and returns the embedded claims. Any
// failure yields ErrInvalidToken.
func (c Codec) Verify(token string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return c.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Profile rebuilds the public identity carried by the claims.
func (cl *Claims) Profile() domain.Profile {
	return domain.Profile{ID: cl.UserID, Email: cl.Email, Name: cl.Name}
}
