package domain

import "errors"

var (
	ErrUnauthenticated     = errors.New("missing or malformed authorization header")
	ErrInvalidToken        = errors.New("invalid token")
	ErrRefreshTokenInvalid = errors.New("refresh token not found")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
	ErrUserNotFound        = errors.New("user not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrBadRequest          = errors.New("bad request")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrRateLimited         = errors.New("too many requests")
	ErrInternal            = errors.New("internal server error")
)
