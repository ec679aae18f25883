package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"securechat/internal/domain"
	"securechat/internal/security"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// WithUser returns a new context carrying the current user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// CurrentUser extracts the current user from context, if any.
func CurrentUser(r *http.Request) *domain.User {
	if v := r.Context().Value(userContextKey); v != nil {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: msg, Code: "unauthorized"})
}

// AuthMiddleware validates the Bearer token and attaches the user to the context.
func AuthMiddleware(tokens *security.TokenService, users domain.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				unauthorized(w, "missing or invalid Authorization header")
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			sub, err := tokens.Subject(tokenStr)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			user, err := users.GetByID(r.Context(), sub)
			if err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Str("sub", sub).Msg("auth: token subject not found")
				unauthorized(w, "user not found")
				return
			}

			logger := zerolog.Ctx(r.Context()).With().Str("user_id", user.ID).Logger()
			ctx := logger.WithContext(WithUser(r.Context(), user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
