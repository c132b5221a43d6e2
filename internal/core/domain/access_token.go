package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccessTokenTTL is the fixed lifetime of every access token.
const AccessTokenTTL = time.Hour

// AccessToken is a signed, stateless credential. It is never persisted.
type AccessToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExpiresIn is the lifetime in whole seconds, as reported to clients.
func (t *AccessToken) ExpiresIn() int64 {
	return int64(t.ExpiresAt.Sub(t.IssuedAt) / time.Second)
}

// AccessClaims is what a verified access token says about its bearer.
type AccessClaims struct {
	UserID    uuid.UUID
	Email     string
	Region    Region
	IssuedAt  time.Time
	ExpiresAt time.Time
}
