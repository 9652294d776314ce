package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gosuda/taskboard/internal/domain"
)

// UserLookup resolves a token subject to a stored user.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Verifier resolves bearer credentials to users. It is shared by the
// websocket handshake and the REST auth middleware.
type Verifier struct {
	decoder Decoder
	users   UserLookup
}

// NewVerifier creates a new token verifier.
func NewVerifier(decoder Decoder, users UserLookup) *Verifier {
	return &Verifier{decoder: decoder, users: users}
}

// Resolve returns the user behind raw. Every credential failure is reported
// as ErrInvalidToken so callers cannot tell a bad token from an expired one.
func (v *Verifier) Resolve(ctx context.Context, raw string) (*domain.User, error) {
	token := StripScheme(raw)
	if token == "" {
		return nil, fmt.Errorf("auth.Verifier.Resolve: empty token: %w", ErrInvalidToken)
	}

	claims, err := v.decoder.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("auth.Verifier.Resolve: %w", ErrInvalidToken)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("auth.Verifier.Resolve: missing subject: %w", ErrInvalidToken)
	}

	user, err := v.users.GetByUsername(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && user == nil) {
		return nil, fmt.Errorf("auth.Verifier.Resolve: unknown subject: %w", ErrInvalidToken)
	}
	if err != nil {
		// Store failures are not credential failures.
		return nil, fmt.Errorf("auth.Verifier.Resolve: %w", err)
	}

	return user, nil
}

// StripScheme removes an optional, case-insensitive "Bearer " prefix.
func StripScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "bearer") {
		return ""
	}
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
