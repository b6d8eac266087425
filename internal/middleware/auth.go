package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/auth"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/enum"
)

// SessionCookieName is the HttpOnly cookie carrying the signed session token.
const SessionCookieName = "session"

type contextKey string

const claimsKey contextKey = "claims"

// tokenFromRequest prefers the session cookie and falls back to a bearer token.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, tokenStr)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid session"})
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
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

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
		})
	}
}

// RedirectAuthenticated sends a visitor who already holds a valid session
// away from the login page to the home page of their role.
func RedirectAuthenticated(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr != "" {
				if claims, err := auth.ValidateToken(jwtSecret, tokenStr); err == nil {
					if home := HomeFor(claims.Role); home != "" {
						http.Redirect(w, r, home, http.StatusSeeOther)
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HomeFor returns the landing path for a role, or "" for unknown roles.
func HomeFor(role string) string {
	switch role {
	case enum.UserRoleAdmin:
		return "/admin"
	case enum.UserRoleHelper:
		return "/orders"
	}
	return ""
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// IdentityFromContext returns the authenticated identity stored by Authenticate.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return auth.Identity{}, false
	}
	return claims.Identity, true
}

// WithIdentity stores an identity as if Authenticate had run. Used by tests
// and internal callers that already trust the identity.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, claimsKey, &auth.Claims{Identity: id})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
