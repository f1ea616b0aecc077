package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or overwrite the
// user id stored in a request context.
type contextKey string

const userIDKey contextKey = "userID"

// Places a client may put its token, checked in this order.
const (
	CookieName      = "token"
	LegacyHeader    = "x-auth-token"
	bearerPrefix    = "Bearer "
	unauthorizedMsg = `{"error":"unauthorized","message":"valid authentication required"}`
)

var errNoToken = errors.New("auth: no token")

// RequireAuth rejects requests without a valid token with 401 and stores
// the caller's user id in the context otherwise.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns one that wraps it. Chi
// applies them as a chain: req → M1 → M2 → Handler → M2 → M1 → resp.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(unauthorizedMsg))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through unchanged.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying userID. Handler tests use it to
// skip token handling.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user's id, or ("", false) for
// anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// TokenFromRequest returns the raw token from the Authorization header,
// the x-auth-token header or the token cookie, in that order.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix)); tok != "" {
			return tok
		}
	}
	if tok := r.Header.Get(LegacyHeader); tok != "" {
		return tok
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	tok := TokenFromRequest(r)
	if tok == "" {
		return "", errNoToken
	}
	return tokens.Validate(tok)
}
