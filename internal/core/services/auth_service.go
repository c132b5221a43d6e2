package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	MinPasswordLength      = 8

	refreshTokenBytes = 32
)

// AuthConfig holds the values injected at process start. Region decides the
// region claim of every access token; it is never read from the environment
// here.
type AuthConfig struct {
	Region          domain.Region
	RefreshTokenTTL time.Duration
	// RotateOnUse revokes a refresh token (reason "rotation") the first time
	// it is exchanged and hands out a replacement.
	RotateOnUse    bool
	GoogleClientID string
}

type AuthDeps struct {
	Users   ports.UserRepository
	Tokens  ports.RefreshTokenRepository
	Issuer  ports.TokenIssuer
	Google  ports.TokenVerifier
	Limiter ports.RateLimiter
	Audit   ports.AuditRecorder
	Logger  *slog.Logger
	Now     func() time.Time
}

type AuthService struct {
	cfg                 AuthConfig
	userRepo            ports.UserRepository
	tokenRepo           ports.RefreshTokenRepository
	issuer              ports.TokenIssuer
	googleTokenVerifier ports.TokenVerifier
	limiter             ports.RateLimiter
	audit               ports.AuditRecorder
	log                 *slog.Logger
	now                 func() time.Time
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(cfg AuthConfig, deps AuthDeps) *AuthService {
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}

	s := &AuthService{
		cfg:                 cfg,
		userRepo:            deps.Users,
		tokenRepo:           deps.Tokens,
		issuer:              deps.Issuer,
		googleTokenVerifier: deps.Google,
		limiter:             deps.Limiter,
		audit:               deps.Audit,
		log:                 deps.Logger,
		now:                 deps.Now,
	}
	if s.limiter == nil {
		s.limiter = allowAll{}
	}
	if s.audit == nil {
		s.audit = discardAudit{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *AuthService) GoogleEnabled() bool {
	return s.googleTokenVerifier != nil && s.cfg.GoogleClientID != ""
}

func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*ports.LoginResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || len(input.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: email and a password of at least %d characters are required", domain.ErrBadRequest, MinPasswordLength)
	}
	if err := s.checkRate(ctx, ports.ActionRegister, input.Client.IP); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password too long", domain.ErrBadRequest)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.startSession(ctx, domain.AuditRegister, user, input.Client)
}

func (s *AuthService) Login(ctx context.Context, input ports.LoginInput) (*ports.LoginResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrBadRequest)
	}
	if err := s.checkRate(ctx, ports.ActionLogin, input.Client.IP); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		s.emitFailure(ctx, domain.AuditLogin, "", input.Client, domain.ErrInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.emitFailure(ctx, domain.AuditLogin, user.ID.String(), input.Client, domain.ErrInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	return s.startSession(ctx, domain.AuditLogin, user, input.Client)
}

func (s *AuthService) LoginWithGoogle(ctx context.Context, credential string, client ports.ClientInfo) (*ports.LoginResult, error) {
	if !s.GoogleEnabled() {
		return nil, fmt.Errorf("%w: google sign-in is not configured", domain.ErrBadRequest)
	}
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%w: missing credential", domain.ErrBadRequest)
	}
	if err := s.checkRate(ctx, ports.ActionLogin, client.IP); err != nil {
		return nil, err
	}

	payload, err := s.googleTokenVerifier.Verify(ctx, credential, s.cfg.GoogleClientID)
	if err != nil {
		s.emitFailure(ctx, domain.AuditLogin, "", client, err)
		return nil, fmt.Errorf("%w: invalid google token: %v", domain.ErrInvalidCredentials, err)
	}

	email := normalizeEmail(payload.Email)
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user == nil {
		user = &domain.User{
			Email: email,
			Name:  payload.Name,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	return s.startSession(ctx, domain.AuditLogin, user, client)
}

// Refresh exchanges a refresh token for a new access token. With rotation
// enabled the replacement is stored before the presented record is revoked,
// so a failed write leaves the old token usable. Only the caller that wins
// the conditional revoke keeps its replacement.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ports.ClientInfo) (*ports.RefreshResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: refresh token is required", domain.ErrBadRequest)
	}
	if err := s.checkRate(ctx, ports.ActionRefresh, client.IP); err != nil {
		return nil, err
	}

	record, err := s.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		s.emitFailure(ctx, domain.AuditRefresh, "", client, err)
		return nil, err
	}

	access, err := s.issueAccessToken(record.UserID, record.Email)
	if err != nil {
		return nil, err
	}

	result := &ports.RefreshResult{AccessToken: access}
	event := domain.AuditRefresh

	if s.cfg.RotateOnUse {
		raw, replacement, err := s.IssueRefreshToken(ctx, record.UserID, record.Email, client)
		if err != nil {
			return nil, err
		}

		revoked, err := s.tokenRepo.Revoke(ctx, record.ID, domain.RevocationRotation, s.now())
		if err != nil || !revoked {
			s.discardReplacement(ctx, replacement)
			if err != nil {
				return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
			}
			s.emitFailure(ctx, domain.AuditRefresh, record.UserID.String(), client, domain.ErrRefreshTokenRevoked)
			return nil, domain.ErrRefreshTokenRevoked
		}

		result.RefreshToken = raw
		event = domain.AuditRotate
	}

	s.audit.Emit(ctx, domain.AuditEvent{
		Timestamp: s.now(),
		Type:      event,
		UserID:    record.UserID.String(),
		SessionID: record.ID.String(),
		IP:        client.IP,
		Success:   true,
	})

	return result, nil
}

// VerifyRefreshToken looks the token up by hash. A revoked record reports
// REVOKED even when it has also expired.
func (s *AuthService) VerifyRefreshToken(ctx context.Context, refreshToken string) (*domain.RefreshToken, error) {
	record, err := s.tokenRepo.GetByHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if record == nil {
		return nil, domain.ErrRefreshTokenInvalid
	}
	if record.Revoked {
		return nil, domain.ErrRefreshTokenRevoked
	}
	if record.IsExpired(s.now()) {
		return nil, domain.ErrRefreshTokenExpired
	}
	return record, nil
}

func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.AccessClaims, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.issuer.ParseAccessToken(accessToken)
}

// Logout revokes every refresh token of the user. Calling it again revokes
// nothing and still succeeds.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, client ports.ClientInfo) (int64, error) {
	count, err := s.tokenRepo.RevokeAllForUser(ctx, userID, domain.RevocationLogout, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	s.log.InfoContext(ctx, "user logged out", slog.String("user_id", userID.String()), slog.Int64("revoked", count))
	s.audit.Emit(ctx, domain.AuditEvent{
		Timestamp: s.now(),
		Type:      domain.AuditLogout,
		UserID:    userID.String(),
		IP:        client.IP,
		Success:   true,
		Metadata:  map[string]string{"revoked": strconv.FormatInt(count, 10)},
	})

	return count, nil
}

func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID, reason domain.RevocationReason) (int64, error) {
	if !reason.Valid() {
		return 0, fmt.Errorf("%w: unknown revocation reason %q", domain.ErrBadRequest, reason)
	}

	count, err := s.tokenRepo.RevokeAllForUser(ctx, userID, reason, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	s.audit.Emit(ctx, domain.AuditEvent{
		Timestamp: s.now(),
		Type:      domain.AuditRevokeAll,
		UserID:    userID.String(),
		Success:   true,
		Metadata: map[string]string{
			"reason":  string(reason),
			"revoked": strconv.FormatInt(count, 10),
		},
	})

	return count, nil
}

func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]*domain.RefreshToken, error) {
	sessions, err := s.tokenRepo.ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID, client ports.ClientInfo) error {
	record, err := s.tokenRepo.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if record == nil || record.UserID != userID {
		return domain.ErrSessionNotFound
	}
	if record.Revoked {
		return nil
	}

	if _, err := s.tokenRepo.Revoke(ctx, record.ID, domain.RevocationLogout, s.now()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.audit.Emit(ctx, domain.AuditEvent{
		Timestamp: s.now(),
		Type:      domain.AuditSessionRevoke,
		UserID:    userID.String(),
		SessionID: sessionID.String(),
		IP:        client.IP,
		Success:   true,
	})
	return nil
}

// IssueRefreshToken persists a new record and returns the raw token. The raw
// value is not recoverable afterwards.
func (s *AuthService) IssueRefreshToken(ctx context.Context, userID uuid.UUID, email string, client ports.ClientInfo) (string, *domain.RefreshToken, error) {
	raw, err := generateRefreshToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now()
	record := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		Email:     email,
		TokenHash: hashToken(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		UserAgent: client.UserAgent,
		IP:        client.IP,
	}

	if err := s.tokenRepo.Store(ctx, record); err != nil {
		return "", nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return raw, record, nil
}

func (s *AuthService) startSession(ctx context.Context, event domain.AuditEventType, user *domain.User, client ports.ClientInfo) (*ports.LoginResult, error) {
	access, err := s.issueAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	raw, record, err := s.IssueRefreshToken(ctx, user.ID, user.Email, client)
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, domain.AuditEvent{
		Timestamp: s.now(),
		Type:      event,
		UserID:    user.ID.String(),
		SessionID: record.ID.String(),
		IP:        client.IP,
		Success:   true,
	})

	return &ports.LoginResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: raw,
	}, nil
}

// discardReplacement revokes a replacement token whose rotation did not go
// through. The raw value was never handed out.
func (s *AuthService) discardReplacement(ctx context.Context, replacement *domain.RefreshToken) {
	if _, err := s.tokenRepo.Revoke(ctx, replacement.ID, domain.RevocationRotation, s.now()); err != nil {
		s.log.WarnContext(ctx, "failed to revoke unused replacement token",
			slog.String("session_id", replacement.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *AuthService) issueAccessToken(userID uuid.UUID, email string) (*domain.AccessToken, error) {
	token, err := s.issuer.IssueAccessToken(ports.AccessTokenPayload{
		UserID: userID,
		Email:  email,
		Region: s.cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return token, nil
}

// checkRate lets requests through when the limiter backend itself fails.
func (s *AuthService) checkRate(ctx context.Context, action, key string) error {
	if key == "" {
		return nil
	}

	err := s.limiter.Allow(ctx, action, key)
	if err == nil || errors.Is(err, domain.ErrRateLimited) {
		return err
	}

	s.log.WarnContext(ctx, "rate limiter unavailable", slog.String("action", action), slog.Any("error", err))
	return nil
}

func (s *AuthService) emitFailure(ctx context.Context, event domain.AuditEventType, userID string, client ports.ClientInfo, err error) {
	s.audit.Emit(ctx, domain.AuditEvent{
		Timestamp: s.now(),
		Type:      event,
		UserID:    userID,
		IP:        client.IP,
		Success:   false,
		Error:     err.Error(),
	})
}

func generateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string, string) error { return nil }

type discardAudit struct{}

func (discardAudit) Emit(context.Context, domain.AuditEvent) {}
