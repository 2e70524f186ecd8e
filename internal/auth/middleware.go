package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

type contextKey string

const userClaimsKey contextKey = "user_claims"

// forbiddenBody is written for every rejected request, identity problems included.
const forbiddenBody = "{}\n"

// Middleware resolves the Bearer token into Claims. Requests without a
// valid token are rejected with 403 and an empty JSON object.
func Middleware(jwtService *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				Forbidden(w)
				return
			}

			claims, err := jwtService.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				Forbidden(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole lets through only users with one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFrom(r.Context())
			if claims == nil || !slices.Contains(roles, claims.Role) {
				Forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

func ClaimsFrom(ctx context.Context) *Claims {
	claims, ok := ctx.Value(userClaimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func Forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(forbiddenBody))
}
