package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/repository/memory"
	jwtissuer "github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/token/jwt"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *recordingAudit) Emit(_ context.Context, event domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordingAudit) Types() []domain.AuditEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Type)
	}
	return out
}

type stubLimiter struct {
	err error
}

func (l stubLimiter) Allow(context.Context, string, string) error { return l.err }

type stubVerifier struct {
	payload *ports.TokenPayload
}

func (v stubVerifier) Verify(_ context.Context, token, _ string) (*ports.TokenPayload, error) {
	if token != "google-ok" {
		return nil, errors.New("bad google token")
	}
	return v.payload, nil
}

type testEnv struct {
	svc    *AuthService
	users  *memory.UserRepository
	tokens *memory.RefreshTokenRepository
	clock  *clock
	audit  *recordingAudit
}

func newTestEnv(t *testing.T, cfg AuthConfig, deps AuthDeps) *testEnv {
	t.Helper()

	env := &testEnv{
		users:  memory.NewUserRepository(),
		tokens: memory.NewRefreshTokenRepository(),
		clock:  &clock{now: time.Now().Truncate(time.Second)},
		audit:  &recordingAudit{},
	}

	issuer, err := jwtissuer.NewIssuer([]byte("service-test-secret-0123456789"), "mvp-25", jwtissuer.WithClock(env.clock.Now))
	require.NoError(t, err)

	if cfg.Region == "" {
		cfg.Region = domain.RegionINTL
	}
	deps.Users = env.users
	deps.Tokens = env.tokens
	deps.Issuer = issuer
	deps.Audit = env.audit
	deps.Now = env.clock.Now

	env.svc = NewAuthService(cfg, deps)
	return env
}

func (e *testEnv) register(t *testing.T) (*ports.LoginResult, string) {
	t.Helper()
	password := gofakeit.Password(true, true, true, false, false, 12)
	res, err := e.svc.Register(context.Background(), ports.RegisterInput{
		Email:    gofakeit.Email(),
		Password: password,
		Name:     gofakeit.Name(),
		Client:   ports.ClientInfo{IP: "10.0.0.1", UserAgent: "test"},
	})
	require.NoError(t, err)
	return res, password
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, AuthConfig{}, AuthDeps{})
	ctx := context.Background()

	res, password := env.register(t)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(3600), res.AccessToken.ExpiresIn())
	assert.NotEqual(t, uuid.Nil, res.User.ID)

	login, err := env.svc.Login(ctx, ports.LoginInput{Email: "  " + res.User.Email + " ", Password: password})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)
	assert.NotEqual(t, res.RefreshToken, login.RefreshToken)

	_, err = env.svc.Login(ctx, ports.LoginInput{Email: res.User.Email, Password: "wrong-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = env.svc.Login(ctx, ports.LoginInput{Email: "nobody@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = env.svc.Register(ctx, ports.RegisterInput{Email: res.User.Email, Password: "another-password"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	_, err = env.svc.Register(ctx, ports.RegisterInput{Email: "short@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRefreshIssuesOneHourAccessToken(t *testing.T) {
	env := newTestEnv(t, AuthConfig{Region: domain.RegionCN}, AuthDeps{})
	res, _ := env.register(t)

	env.clock.Advance(30 * time.Minute)
	refreshed, err := env.svc.Refresh(context.Background(), res.RefreshToken, ports.ClientInfo{})
	require.NoError(t, err)
	assert.Empty(t, refreshed.RefreshToken)
	assert.Equal(t, int64(3600), refreshed.AccessToken.ExpiresIn())

	claims, err := env.svc.Authenticate(context.Background(), refreshed.AccessToken.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, res.User.Email, claims.Email)
	assert.Equal(t, domain.RegionCN, claims.Region)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt))
}

func TestVerifyRefreshToken(t *testing.T) {
	env := newTestEnv(t, AuthConfig{RefreshTokenTTL: time.Hour}, AuthDeps{})
	ctx := context.Background()
	res, password := env.register(t)

	_, err := env.svc.VerifyRefreshToken(ctx, "unknown-token")
	assert.ErrorIs(t, err, domain.ErrRefreshTokenInvalid)

	record, err := env.svc.VerifyRefreshToken(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, record.UserID)
	assert.Equal(t, res.User.Email, record.Email)

	_, err = env.svc.Logout(ctx, res.User.ID, ports.ClientInfo{})
	require.NoError(t, err)

	second, err := env.svc.Login(ctx, ports.LoginInput{Email: res.User.Email, Password: password})
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	_, err = env.svc.VerifyRefreshToken(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenExpired)

	// Revocation wins over expiry.
	_, err = env.svc.VerifyRefreshToken(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenRevoked)
}

func TestRefreshTwiceWithoutRotation(t *testing.T) {
	env := newTestEnv(t, AuthConfig{}, AuthDeps{})
	res, _ := env.register(t)

	for i := 0; i < 2; i++ {
		refreshed, err := env.svc.Refresh(context.Background(), res.RefreshToken, ports.ClientInfo{})
		require.NoError(t, err)
		assert.NotNil(t, refreshed.AccessToken)
	}
}

func TestRefreshWithRotation(t *testing.T) {
	env := newTestEnv(t, AuthConfig{RotateOnUse: true}, AuthDeps{})
	ctx := context.Background()
	res, _ := env.register(t)

	first, err := env.svc.Refresh(ctx, res.RefreshToken, ports.ClientInfo{})
	require.NoError(t, err)
	require.NotEmpty(t, first.RefreshToken)
	assert.NotEqual(t, res.RefreshToken, first.RefreshToken)

	_, err = env.svc.Refresh(ctx, res.RefreshToken, ports.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrRefreshTokenRevoked)

	old, err := env.tokens.GetByHash(ctx, hashToken(res.RefreshToken))
	require.NoError(t, err)
	require.NotNil(t, old.RevokedReason)
	assert.Equal(t, domain.RevocationRotation, *old.RevokedReason)

	_, err = env.svc.Refresh(ctx, first.RefreshToken, ports.ClientInfo{})
	assert.NoError(t, err)
	assert.Contains(t, env.audit.Types(), domain.AuditRotate)
}

func TestConcurrentRotationSingleWinner(t *testing.T) {
	env := newTestEnv(t, AuthConfig{RotateOnUse: true}, AuthDeps{})
	res, _ := env.register(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.Refresh(context.Background(), res.RefreshToken, ports.ClientInfo{}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)

	// Replacements minted by the losing callers are revoked again.
	sessions, err := env.svc.ListSessions(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

type flakyTokens struct {
	ports.RefreshTokenRepository

	mu         sync.Mutex
	failStores int
}

func (f *flakyTokens) Store(ctx context.Context, token *domain.RefreshToken) error {
	f.mu.Lock()
	if f.failStores > 0 {
		f.failStores--
		f.mu.Unlock()
		return errors.New("db down")
	}
	f.mu.Unlock()
	return f.RefreshTokenRepository.Store(ctx, token)
}

func TestRotationKeepsTokenWhenReplacementFails(t *testing.T) {
	env := newTestEnv(t, AuthConfig{RotateOnUse: true}, AuthDeps{})
	ctx := context.Background()
	res, _ := env.register(t)

	env.svc.tokenRepo = &flakyTokens{RefreshTokenRepository: env.tokens, failStores: 1}

	_, err := env.svc.Refresh(ctx, res.RefreshToken, ports.ClientInfo{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRefreshTokenRevoked)

	_, err = env.svc.VerifyRefreshToken(ctx, res.RefreshToken)
	require.NoError(t, err)

	retried, err := env.svc.Refresh(ctx, res.RefreshToken, ports.ClientInfo{})
	require.NoError(t, err)
	assert.NotEmpty(t, retried.RefreshToken)

	_, err = env.svc.Refresh(ctx, res.RefreshToken, ports.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrRefreshTokenRevoked)
}

func TestLogoutRevokesEverySession(t *testing.T) {
	env := newTestEnv(t, AuthConfig{}, AuthDeps{})
	ctx := context.Background()
	res, password := env.register(t)

	second, err := env.svc.Login(ctx, ports.LoginInput{Email: res.User.Email, Password: password})
	require.NoError(t, err)

	sessions, err := env.svc.ListSessions(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	count, err := env.svc.Logout(ctx, res.User.ID, ports.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	for _, token := range []string{res.RefreshToken, second.RefreshToken} {
		_, err := env.svc.Refresh(ctx, token, ports.ClientInfo{})
		assert.ErrorIs(t, err, domain.ErrRefreshTokenRevoked)
	}

	// Access tokens are stateless and keep working until they expire.
	_, err = env.svc.Authenticate(ctx, res.AccessToken.Token)
	assert.NoError(t, err)

	count, err = env.svc.Logout(ctx, res.User.ID, ports.ClientInfo{})
	require.NoError(t, err)
	assert.Zero(t, count)

	record, err := env.tokens.GetByHash(ctx, hashToken(res.RefreshToken))
	require.NoError(t, err)
	require.NotNil(t, record.RevokedReason)
	assert.Equal(t, domain.RevocationLogout, *record.RevokedReason)
}

func TestLogoutLeavesExpiredSessionsAlone(t *testing.T) {
	env := newTestEnv(t, AuthConfig{RefreshTokenTTL: time.Hour}, AuthDeps{})
	ctx := context.Background()
	res, _ := env.register(t)

	env.clock.Advance(2 * time.Hour)
	count, err := env.svc.Logout(ctx, res.User.ID, ports.ClientInfo{})
	require.NoError(t, err)
	assert.Zero(t, count)

	record, err := env.tokens.GetByHash(ctx, hashToken(res.RefreshToken))
	require.NoError(t, err)
	assert.False(t, record.Revoked)
	assert.Nil(t, record.RevokedReason)

	_, err = env.svc.VerifyRefreshToken(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenExpired)
}

func TestRevokeSession(t *testing.T) {
	env := newTestEnv(t, AuthConfig{}, AuthDeps{})
	ctx := context.Background()
	owner, password := env.register(t)
	other, _ := env.register(t)

	_, err := env.svc.Login(ctx, ports.LoginInput{Email: owner.User.Email, Password: password})
	require.NoError(t, err)

	sessions, err := env.svc.ListSessions(ctx, owner.User.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	target := sessions[0].ID

	err = env.svc.RevokeSession(ctx, other.User.ID, target, ports.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = env.svc.RevokeSession(ctx, owner.User.ID, uuid.New(), ports.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, env.svc.RevokeSession(ctx, owner.User.ID, target, ports.ClientInfo{}))
	require.NoError(t, env.svc.RevokeSession(ctx, owner.User.ID, target, ports.ClientInfo{}))

	sessions, err = env.svc.ListSessions(ctx, owner.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestRevokeAllUserTokens(t *testing.T) {
	env := newTestEnv(t, AuthConfig{}, AuthDeps{})
	ctx := context.Background()
	res, _ := env.register(t)

	_, err := env.svc.RevokeAllUserTokens(ctx, res.User.ID, "whim")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	count, err := env.svc.RevokeAllUserTokens(ctx, res.User.ID, domain.RevocationSecurity)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	record, err := env.tokens.GetByHash(ctx, hashToken(res.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, domain.RevocationSecurity, *record.RevokedReason)
	assert.Contains(t, env.audit.Types(), domain.AuditRevokeAll)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, AuthConfig{}, AuthDeps{})
	ctx := context.Background()

	_, err := env.svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = env.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	res, _ := env.register(t)
	env.clock.Advance(time.Hour)
	_, err = env.svc.Authenticate(ctx, res.AccessToken.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRateLimiting(t *testing.T) {
	env := newTestEnv(t, AuthConfig{}, AuthDeps{Limiter: stubLimiter{err: domain.ErrRateLimited}})
	_, err := env.svc.Login(context.Background(), ports.LoginInput{
		Email:    "a@example.com",
		Password: "password1",
		Client:   ports.ClientInfo{IP: "10.0.0.1"},
	})
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	broken := newTestEnv(t, AuthConfig{}, AuthDeps{Limiter: stubLimiter{err: errors.New("redis down")}})
	_, err = broken.svc.Register(context.Background(), ports.RegisterInput{
		Email:    "a@example.com",
		Password: "password1",
		Client:   ports.ClientInfo{IP: "10.0.0.1"},
	})
	assert.NoError(t, err)
}

func TestLoginWithGoogle(t *testing.T) {
	disabled := newTestEnv(t, AuthConfig{}, AuthDeps{})
	assert.False(t, disabled.svc.GoogleEnabled())
	_, err := disabled.svc.LoginWithGoogle(context.Background(), "google-ok", ports.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	env := newTestEnv(t, AuthConfig{GoogleClientID: "client"}, AuthDeps{
		Google: stubVerifier{payload: &ports.TokenPayload{Email: "Learner@Example.com", Name: "Learner"}},
	})
	require.True(t, env.svc.GoogleEnabled())

	first, err := env.svc.LoginWithGoogle(context.Background(), "google-ok", ports.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, "learner@example.com", first.User.Email)

	second, err := env.svc.LoginWithGoogle(context.Background(), "google-ok", ports.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	_, err = env.svc.LoginWithGoogle(context.Background(), "forged", ports.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
