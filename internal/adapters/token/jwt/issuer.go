package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

// MinSecretLength is the shortest HS256 secret accepted.
const MinSecretLength = 16

type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Region string `json:"region"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

var _ ports.TokenIssuer = (*Issuer)(nil)

type Option func(*Issuer)

// WithClock replaces time.Now for both issuing and validation.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(secret []byte, issuer string, opts ...Option) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}

	i := &Issuer{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Issuer) IssueAccessToken(payload ports.AccessTokenPayload) (*domain.AccessToken, error) {
	if payload.UserID == uuid.Nil {
		return nil, errors.New("access token requires a user id")
	}

	issuedAt := i.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(domain.AccessTokenTTL)

	claims := Claims{
		UserID: payload.UserID.String(),
		Email:  payload.Email,
		Region: payload.Region.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &domain.AccessToken{
		Token:     signed,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseAccessToken checks signature, algorithm, issuer and expiry. Every
// failure wraps domain.ErrInvalidToken; expiry additionally wraps
// jwt.ErrTokenExpired.
func (i *Issuer) ParseAccessToken(tokenString string) (*domain.AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad uid claim", domain.ErrInvalidToken)
	}

	region, err := domain.ParseRegion(claims.Region)
	if err != nil {
		return nil, fmt.Errorf("%w: bad region claim", domain.ErrInvalidToken)
	}

	return &domain.AccessClaims{
		UserID:    userID,
		Email:     claims.Email,
		Region:    region,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
