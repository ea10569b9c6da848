package repository

import (
	"context"

	"github.com/yes-simulation/accounts/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user and fills in CreatedAt. A taken username
	// yields an error matching apperrors.ErrAlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	// GetByUsername retrieves a user by username. A missing user yields an
	// error matching apperrors.ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}
