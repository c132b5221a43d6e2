// Package memory holds map-backed repositories used as test fakes.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
	now   func() time.Time
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[uuid.UUID]domain.User),
		now:   time.Now,
	}
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email && u.DeletedAt == nil {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email && u.DeletedAt == nil {
			return domain.ErrEmailTaken
		}
	}

	user.ID = uuid.New()
	user.CreatedAt = r.now()
	r.users[user.ID] = *user
	return nil
}

// Delete soft-deletes a user.
func (r *UserRepository) Delete(_ context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[id]; ok {
		at := r.now()
		u.DeletedAt = &at
		r.users[id] = u
	}
}

var ErrDuplicateHash = errors.New("refresh token hash already stored")

type RefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]domain.RefreshToken
}

var _ ports.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: make(map[uuid.UUID]domain.RefreshToken)}
}

func (r *RefreshTokenRepository) Store(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.TokenHash == token.TokenHash {
			return ErrDuplicateHash
		}
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	r.tokens[token.ID] = *token
	return nil
}

func (r *RefreshTokenRepository) GetByHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.TokenHash == tokenHash {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *RefreshTokenRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *RefreshTokenRepository) ListActiveByUser(_ context.Context, userID uuid.UUID, now time.Time) ([]*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.RefreshToken
	for _, t := range r.tokens {
		if t.UserID == userID && t.IsActive(now) {
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

func (r *RefreshTokenRepository) Revoke(_ context.Context, id uuid.UUID, reason domain.RevocationReason, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok || t.Revoked {
		return false, nil
	}
	r.tokens[id] = revoked(t, reason, at)
	return true, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(_ context.Context, userID uuid.UUID, reason domain.RevocationReason, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.tokens {
		if t.UserID != userID || !t.IsActive(at) {
			continue
		}
		r.tokens[id] = revoked(t, reason, at)
		n++
	}
	return n, nil
}

func revoked(t domain.RefreshToken, reason domain.RevocationReason, at time.Time) domain.RefreshToken {
	t.Revoked = true
	t.RevokedAt = &at
	t.RevokedReason = &reason
	return t
}
