package google

import (
	"context"
	"errors"
	"strings"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
	"google.golang.org/api/idtoken"
)

type GoogleVerifier struct {
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewVerifier() *GoogleVerifier {
	return &GoogleVerifier{validate: idtoken.Validate}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string, clientID string) (*ports.TokenPayload, error) {
	payload, err := v.validate(ctx, token, clientID)
	if err != nil {
		return nil, err
	}
	return payloadFromClaims(payload.Claims)
}

func payloadFromClaims(claims map[string]any) (*ports.TokenPayload, error) {
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil, errors.New("email not found in claims")
	}
	if verified, ok := claims["email_verified"].(bool); ok && !verified {
		return nil, errors.New("email not verified")
	}

	// Not every Google account exposes a display name.
	name, _ := claims["name"].(string)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	return &ports.TokenPayload{Email: email, Name: name}, nil
}
