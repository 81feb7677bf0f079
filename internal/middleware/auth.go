package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tillpoint/pos-api/internal/auth"
	"github.com/tillpoint/pos-api/internal/database"
)

type contextKey string

const claimsKey contextKey = "claims"

// SessionValidator confirms that the session behind a token is still open.
// Satisfied by *service.StaffService.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (database.StaffSession, error)
}

// Authenticate requires a valid bearer token whose session has not been
// revoked, so a logout takes effect before the token expires.
func Authenticate(jwtSecret string, sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, parts[1])
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			session, err := sessions.ValidateSession(r.Context(), claims.SessionID)
			if err != nil || session.StaffID != claims.StaffID {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session expired or revoked"})
				return
			}

			ctx := WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}

			if HasRole(claims, roles...) {
				next.ServeHTTP(w, r)
				return
			}

			writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
		})
	}
}

// HasRole reports whether claims carries one of roles.
func HasRole(claims *auth.Claims, roles ...string) bool {
	if claims == nil {
		return false
	}
	for _, role := range roles {
		if claims.Role == role {
			return true
		}
	}
	return false
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// WithClaims returns ctx carrying claims, the way Authenticate stores them.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
