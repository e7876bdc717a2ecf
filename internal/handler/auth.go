package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/slidex/slidex/internal/auth"
	"github.com/slidex/slidex/internal/service"
)

// AuthHandler manages signup, signin, and the Google OAuth login flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignUp / HandleSignIn → email+password auth, set session cookie
//   - HandleOAuthLogin            → redirect the browser to Google
//   - HandleOAuthCallback         → receive the code, exchange it, issue JWT
//   - HandleSignOut               → clear the session cookie
//   - HandleMe                    → return the current user's profile
//
// The handler owns everything cookie- and redirect-shaped; the actual auth
// rules live in service.AuthService.
type AuthHandler struct {
	authService *service.AuthService
	google      *auth.GoogleProvider
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(authService *service.AuthService, google *auth.GoogleProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		google:      google,
		logger:      logger,
	}
}

// setSessionCookie stores the JWT in an HttpOnly cookie.
//
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
// Secure should be true in production (HTTPS only); false for local dev.
func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignUp registers a new account.
//
// HTTP: POST /auth/signup
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "request body must be valid JSON",
		})
		return
	}

	result, err := h.authService.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    result.User,
	})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignIn authenticates an existing account.
//
// HTTP: POST /auth/signin
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "request body must be valid JSON",
		})
		return
	}

	result, err := h.authService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    result.User,
	})
}

// HandleSignOut clears the session cookie.
//
// HTTP: POST /auth/signout
//
// Since sessions are stateless JWTs, signout just deletes the client-side
// cookie. The token stays technically valid until it expires, but without
// the cookie the browser can't send it.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleOAuthLogin redirects the user to Google's authorization page.
//
// HTTP: GET /auth/oauth-login
//
// CSRF PROTECTION VIA STATE:
// A random state string goes into a short-lived cookie; the callback
// verifies it matches. This proves the callback was initiated by this
// server, not a CSRF attacker.
func (h *AuthHandler) HandleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleOAuthCallback completes the OAuth login flow.
//
// HTTP: GET /auth/oauth-callback?code=xxx&state=yyy&next=/dashboard
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code, upsert the user, issue a JWT (service)
//  3. Set the session cookie and redirect to `next`
func (h *AuthHandler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("oauth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("oauth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("oauth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	result, err := h.authService.OAuthLogin(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Error("oauth callback: login failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	setSessionCookie(w, result.Token)
	http.Redirect(w, r, safeNextPath(r.URL.Query().Get("next")), http.StatusSeeOther)
}

// safeNextPath restricts the post-login redirect to a local path. An
// absolute URL here would be an open redirect.
func safeNextPath(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	if _, err := url.Parse(next); err != nil {
		return "/"
	}
	return next
}

// HandleMe returns the currently authenticated user's profile, including
// the remaining credit balance the dashboard displays.
//
// HTTP: GET /auth/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed", slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
