package domain

import (
	"time"

	"github.com/google/uuid"
)

// RevocationReason records why a refresh token stopped being usable.
type RevocationReason string

const (
	RevocationLogout   RevocationReason = "logout"
	RevocationRotation RevocationReason = "rotation"
	RevocationSecurity RevocationReason = "security"
)

func (r RevocationReason) Valid() bool {
	switch r {
	case RevocationLogout, RevocationRotation, RevocationSecurity:
		return true
	}
	return false
}

// RefreshToken is the persisted record behind a refresh token. Only the
// SHA-256 hash of the raw token is kept. Records are never deleted; revoking
// one sets Revoked, RevokedAt and RevokedReason once.
type RefreshToken struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"userId"`
	Email         string            `json:"-"`
	TokenHash     string            `json:"-"`
	IssuedAt      time.Time         `json:"issuedAt"`
	ExpiresAt     time.Time         `json:"expiresAt"`
	Revoked       bool              `json:"revoked"`
	RevokedAt     *time.Time        `json:"revokedAt,omitempty"`
	RevokedReason *RevocationReason `json:"revokedReason,omitempty"`
	UserAgent     string            `json:"userAgent,omitempty"`
	IP            string            `json:"ip,omitempty"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
