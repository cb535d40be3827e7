package driving

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// CreateUserRequest represents a request to create a new user
type CreateUserRequest struct {
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8"`
	Name     string      `json:"name" validate:"required"`
	Role     domain.Role `json:"role" validate:"required,oneof=admin employee client"`
}

// UserService manages user accounts
type UserService interface {
	// Create creates a new user. Admins and employees get an upload slug.
	Create(ctx context.Context, req CreateUserRequest) (*domain.User, error)

	// Get retrieves a user by ID
	Get(ctx context.Context, id string) (*domain.User, error)

	// GetBySlug retrieves the user owning a personal upload URL
	GetBySlug(ctx context.Context, slug string) (*domain.User, error)

	// List retrieves all users
	List(ctx context.Context) ([]*domain.User, error)
}
