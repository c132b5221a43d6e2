package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
)

// UserRepository returns (nil, nil) from the getters when no live user matches.
// Create fails with domain.ErrEmailTaken on a duplicate email.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
}
