package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

var testSecret = []byte("test-secret-test-secret-0123456789")

func newTestIssuer(t *testing.T, now func() time.Time) *Issuer {
	t.Helper()
	opts := []Option{}
	if now != nil {
		opts = append(opts, WithClock(now))
	}
	issuer, err := NewIssuer(testSecret, "mvp-25", opts...)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuerRejectsShortSecret(t *testing.T) {
	_, err := NewIssuer([]byte("short"), "mvp-25")
	assert.Error(t, err)
}

func TestIssueAndParseAccessToken(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	userID := uuid.New()

	token, err := issuer.IssueAccessToken(ports.AccessTokenPayload{
		UserID: userID,
		Email:  "student@example.com",
		Region: domain.RegionCN,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, int64(3600), token.ExpiresIn())

	claims, err := issuer.ParseAccessToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "student@example.com", claims.Email)
	assert.Equal(t, domain.RegionCN, claims.Region)
	assert.InDelta(t, 3600, claims.ExpiresAt.Sub(claims.IssuedAt).Seconds(), 0)
}

func TestIssueAccessTokenUniquePerCall(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return fixed })
	payload := ports.AccessTokenPayload{UserID: uuid.New(), Email: "a@example.com", Region: domain.RegionINTL}

	first, err := issuer.IssueAccessToken(payload)
	require.NoError(t, err)
	second, err := issuer.IssueAccessToken(payload)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
}

func TestIssueAccessTokenRequiresUser(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	_, err := issuer.IssueAccessToken(ports.AccessTokenPayload{Email: "a@example.com", Region: domain.RegionINTL})
	assert.Error(t, err)
}

func TestParseAccessTokenExpired(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)
	issuer := newTestIssuer(t, func() time.Time { return issuedAt })

	token, err := issuer.IssueAccessToken(ports.AccessTokenPayload{UserID: uuid.New(), Region: domain.RegionINTL})
	require.NoError(t, err)

	verifier := newTestIssuer(t, nil)
	_, err = verifier.ParseAccessToken(token.Token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestParseAccessTokenStillValidBeforeExpiry(t *testing.T) {
	issuedAt := time.Now().Add(-59 * time.Minute)
	issuer := newTestIssuer(t, func() time.Time { return issuedAt })

	token, err := issuer.IssueAccessToken(ports.AccessTokenPayload{UserID: uuid.New(), Region: domain.RegionINTL})
	require.NoError(t, err)

	_, err = newTestIssuer(t, nil).ParseAccessToken(token.Token)
	assert.NoError(t, err)
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	token, err := issuer.IssueAccessToken(ports.AccessTokenPayload{UserID: uuid.New(), Region: domain.RegionINTL})
	require.NoError(t, err)

	other, err := NewIssuer([]byte("another-secret-another-secret"), "mvp-25")
	require.NoError(t, err)

	_, err = other.ParseAccessToken(token.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = issuer.ParseAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = issuer.ParseAccessToken(token.Token + "x")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestParseAccessTokenRejectsWrongAlgorithm(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	now := time.Now()
	claims := Claims{
		UserID: uuid.NewString(),
		Region: "intl",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mvp-25",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = issuer.ParseAccessToken(signed)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.ParseAccessToken(unsigned)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestParseAccessTokenRejectsForeignIssuer(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	foreign, err := NewIssuer(testSecret, "someone-else")
	require.NoError(t, err)

	token, err := foreign.IssueAccessToken(ports.AccessTokenPayload{UserID: uuid.New(), Region: domain.RegionINTL})
	require.NoError(t, err)

	_, err = issuer.ParseAccessToken(token.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
