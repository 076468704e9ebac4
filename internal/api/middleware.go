package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/audithq/contest-engine/internal/storage"
)

// AuthMiddleware handles API token and admin token authentication
type AuthMiddleware struct {
	repo       storage.Repository
	adminToken string
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(repo storage.Repository, adminToken string) *AuthMiddleware {
	return &AuthMiddleware{repo: repo, adminToken: adminToken}
}

// Authenticate resolves the caller's user account from their API token.
// Supports "Bearer <token>" in the Authorization header or the raw token
// in X-API-Token.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "provide Authorization header with Bearer token or X-API-Token header")
			return
		}

		user, err := m.repo.GetUserByToken(r.Context(), token)
		if err != nil {
			slog.Error("failed to lookup user by token", "error", err, "token_prefix", maskToken(token))
			respondError(w, http.StatusInternalServerError, "internal_error", "authentication failed")
			return
		}

		if user == nil {
			slog.Warn("invalid api token attempt", "token_prefix", maskToken(token), "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "unauthorized", "the provided api token is not valid")
			return
		}

		ctx := ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin checks the static admin token from the X-Admin-Token header
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if token == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "provide X-Admin-Token header")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(m.adminToken)) != 1 {
			slog.Warn("invalid admin token attempt", "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusForbidden, "forbidden", "the provided admin token is not valid")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken extracts the API token from request headers
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		return authHeader
	}

	return r.Header.Get("X-API-Token")
}

// maskToken returns first 8 chars of a token for safe logging
func maskToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:8] + "..."
}
