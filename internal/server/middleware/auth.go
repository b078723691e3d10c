package middleware

import (
	"net/http"
	"strings"
)

const bearerPrefix = "bearer "

// TokenValidator validates an access token and returns its subject.
type TokenValidator interface {
	ValidateAccess(token string) (userID string, err error)
}

// RequireAuth rejects requests without a valid Bearer access token and sets
// the user ID in context for the rest.
func RequireAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r)
			if token == "" {
				Fail(w, http.StatusUnauthorized, "No token provided")
				return
			}
			userID, err := tokens.ValidateAccess(token)
			if err != nil {
				Fail(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// ExtractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func ExtractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
