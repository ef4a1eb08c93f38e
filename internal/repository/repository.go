package repository

import (
	"context"

	"github.com/splax/taskgate/internal/domain"
)

// UserRepository persists gateway accounts. It is the only storage the
// gateway owns; tasks live behind the backend API.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}
