package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/domain"
)

// TokenResolver maps a bearer credential to a user. *auth.Verifier
// satisfies it.
type TokenResolver interface {
	Resolve(ctx context.Context, raw string) (*domain.User, error)
}

// Auth resolves the Authorization header and stores the user in the request
// context. Missing or invalid credentials get 401.
func Auth(tokens TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if raw == "" {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
				return
			}

			user, err := tokens.Resolve(r.Context(), raw)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
					return
				}
				log.Error().Err(err).Msg("auth: resolve credentials")
				http.Error(w, `{"title":"Internal Server Error","status":500,"detail":"failed to authenticate"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
