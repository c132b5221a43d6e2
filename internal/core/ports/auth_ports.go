package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
)

// RefreshTokenRepository persists refresh token records. GetByHash and GetByID
// return (nil, nil) when nothing matches.
type RefreshTokenRepository interface {
	Store(ctx context.Context, token *domain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RefreshToken, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.RefreshToken, error)
	// Revoke marks a single record revoked. It reports false when the record
	// was already revoked or does not exist.
	Revoke(ctx context.Context, id uuid.UUID, reason domain.RevocationReason, at time.Time) (bool, error)
	// RevokeAllForUser marks every active record of the user revoked and
	// returns how many records changed. Expired records are left untouched.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason domain.RevocationReason, at time.Time) (int64, error)
}

type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Region domain.Region
}

type TokenIssuer interface {
	IssueAccessToken(payload AccessTokenPayload) (*domain.AccessToken, error)
	ParseAccessToken(token string) (*domain.AccessClaims, error)
}

type TokenPayload struct {
	Email string
	Name  string
}

// TokenVerifier validates credentials minted by a hosted identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, token string, clientID string) (*TokenPayload, error)
}

const (
	ActionLogin    = "login"
	ActionRegister = "register"
	ActionRefresh  = "refresh"
)

type RateLimiter interface {
	Allow(ctx context.Context, action, key string) error
}

type AuditRecorder interface {
	Emit(ctx context.Context, event domain.AuditEvent)
}

type ClientInfo struct {
	IP        string
	UserAgent string
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Client   ClientInfo
}

type LoginInput struct {
	Email    string
	Password string
	Client   ClientInfo
}

type LoginResult struct {
	User         *domain.User
	AccessToken  *domain.AccessToken
	RefreshToken string
}

// RefreshResult carries a new access token. RefreshToken is only set when the
// presented token was rotated.
type RefreshResult struct {
	AccessToken  *domain.AccessToken
	RefreshToken string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*LoginResult, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	LoginWithGoogle(ctx context.Context, credential string, client ClientInfo) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*RefreshResult, error)
	VerifyRefreshToken(ctx context.Context, refreshToken string) (*domain.RefreshToken, error)
	Authenticate(ctx context.Context, accessToken string) (*domain.AccessClaims, error)
	Logout(ctx context.Context, userID uuid.UUID, client ClientInfo) (int64, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]*domain.RefreshToken, error)
	RevokeSession(ctx context.Context, userID, sessionID uuid.UUID, client ClientInfo) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID, reason domain.RevocationReason) (int64, error)
	GoogleEnabled() bool
}
