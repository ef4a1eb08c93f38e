// Package auth implements the credential side of the gateway: login,
// signup, and identity resolution. Handlers in httpx translate its errors
// into the canonical JSON shapes.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/taskgate/internal/crypto"
	"github.com/splax/taskgate/internal/domain"
	"github.com/splax/taskgate/internal/repository"
	"github.com/splax/taskgate/internal/token"
)

// ErrInvalidCredentials covers both unknown email and wrong password.
// Collapsing the two is a deliberate enumeration-resistance control; do not
// split it into more specific errors.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrInvalidInput indicates a malformed login or signup payload. It is
// raised before any storage access.
var ErrInvalidInput = errors.New("auth: invalid input")

// ErrEmailTaken indicates a signup against an already registered email.
var ErrEmailTaken = errors.New("auth: email already registered")

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	codec  token.Codec
	logger *slog.Logger
}

// New constructs a Service.
func New(users repository.UserRepository, codec token.Codec, logger *slog.Logger) Service {
	return Service{users: users, codec: codec, logger: logger}
}

// Login verifies credentials and issues a session token. Unknown accounts
// and wrong passwords are indistinguishable to the caller, and both paths
// spend one bcrypt comparison.
func (s Service) Login(ctx context.Context, email, password string) (domain.Profile, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.Profile{}, "", ErrInvalidInput
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			crypto.BurnCompare(password)
			return domain.Profile{}, "", ErrInvalidCredentials
		}
		return domain.Profile{}, "", err
	}
	if !crypto.ComparePassword(user.PasswordHash, password) {
		return domain.Profile{}, "", ErrInvalidCredentials
	}

	profile := user.Profile()
	signed, err := s.codec.Sign(profile)
	if err != nil {
		return domain.Profile{}, "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return profile, signed, nil
}

// Signup registers a user and issues a session like Login.
func (s Service) Signup(ctx context.Context, email, password, name string) (domain.Profile, string, error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < 8 {
		return domain.Profile{}, "", ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Profile{}, "", ErrInvalidInput
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return domain.Profile{}, "", err
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Profile{}, "", ErrEmailTaken
		}
		return domain.Profile{}, "", err
	}

	profile := user.Profile()
	signed, err := s.codec.Sign(profile)
	if err != nil {
		return domain.Profile{}, "", err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return profile, signed, nil
}

// Identify verifies a session token and returns the identity it carries.
// Any failure collapses to token.ErrInvalidToken.
func (s Service) Identify(tok string) (domain.Profile, error) {
	claims, err := s.codec.Verify(tok)
	if err != nil {
		return domain.Profile{}, err
	}
	return claims.Profile(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
