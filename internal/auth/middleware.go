package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. With a plain string key, ANY
// package that knows the string could read or shadow the value. A
// package-private type means only this package can create the key, so only
// this package can read or write userID values in the context.
type contextKey string

const userIDKey contextKey = "userID"

// SessionCookie is the name of the HttpOnly cookie carrying the JWT.
const SessionCookie = "token"

// RequireAuth is a middleware that enforces authentication on protected
// routes.
//
// It reads the JWT from the session cookie, validates it, and stores the
// userID in the request context. If the token is missing or invalid, it
// returns 401 Unauthorized and stops the request chain. There is no ambient
// global session — handlers get the identity from the request context,
// populated here once per request from the verified token.
//
// COOKIE-BASED TOKEN STORAGE:
// The JWT lives in an HttpOnly cookie rather than localStorage or a header.
// HttpOnly means JavaScript cannot read it, which keeps XSS from stealing
// the token.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context.
//
// Returns ("", false) if the request is anonymous (no valid token present).
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ContextWithUserID returns a context carrying the given user id. Exported
// for handler tests, which bypass the middleware.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// extractUserID reads the JWT cookie and validates it.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}

	return tokens.Validate(cookie.Value)
}
