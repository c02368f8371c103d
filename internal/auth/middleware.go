package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
)

type contextKey string

const UserContextKey contextKey = "user"

// Middleware authenticates requests with a bearer token
type Middleware struct {
	verifier Verifier
	skipAuth bool
	logger   zerolog.Logger
}

// NewMiddleware creates a Middleware. With skipAuth every request runs as a
// local admin.
func NewMiddleware(verifier Verifier, skipAuth bool, logger zerolog.Logger) *Middleware {
	return &Middleware{
		verifier: verifier,
		skipAuth: skipAuth,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// DevClaims is the identity injected when SKIP_AUTH is enabled
func DevClaims() *Claims {
	return &Claims{
		Name:   "Dev User",
		Role:   types.RoleAdmin,
		Teams:  []string{},
		Shifts: []string{},
	}
}

// Handler rejects requests without a valid token
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipAuth {
			ctx := context.WithValue(r.Context(), UserContextKey, DevClaims())
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}

		claims, err := m.verifier.Verify(tokenString)
		if err != nil {
			m.logger.Debug().Err(err).Msg("token rejected")
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only the listed roles; must run after Handler
func RequireRole(roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// extractToken gets the token from the Authorization header or, for
// WebSocket upgrades, the token query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
	}
	return r.URL.Query().Get("token")
}

// GetUserFromContext retrieves user claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}

// WithUser stores claims in ctx
func WithUser(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}
