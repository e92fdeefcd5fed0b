package auth

import (
	"context"

	"columbarium/internal/core/id"
)

// UserRepository defines user storage operations.
type UserRepository interface {
	// Create creates a new user. Duplicate usernames are a Conflict.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves user by ID.
	GetByID(ctx context.Context, userID id.ID) (*User, error)

	// GetByUsername retrieves user by normalised username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update persists login bookkeeping with an optimistic version check.
	Update(ctx context.Context, user *User) error
}
