// Package service — authentication business logic.
//
// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//
// KEY RESPONSIBILITIES:
//   - Email/password signup and signin (bcrypt hash, verify)
//   - Orchestrate the Google OAuth callback: upsert the user, issue tokens
//   - Encapsulate all auth rules in one place, away from HTTP concerns
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slidex/slidex/internal/apperror"
	"github.com/slidex/slidex/internal/auth"
	"github.com/slidex/slidex/internal/model"
	"github.com/slidex/slidex/internal/repository"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// OAuthExchanger exchanges an authorization code for a Google profile.
// auth.GoogleProvider satisfies this; tests substitute a fake.
type OAuthExchanger interface {
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	oauth     OAuthExchanger
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	oauth OAuthExchanger,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		oauth:     oauth,
		logger:    logger,
	}
}

// AuthResult is returned by authentication operations.
// It bundles the user record and the issued JWT together so the caller
// (the HTTP handler) can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// SignUp registers a new email/password account.
//
// New accounts start with the initial credit grant applied by the
// repository, so a fresh user can generate decks immediately.
func (s *AuthService) SignUp(ctx context.Context, name, email, password string) (*AuthResult, error) {
	// === VALIDATION ===
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "email is not valid")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}

	// Create fills in ID, Credits, and timestamps. A duplicate email
	// surfaces as apperror.ErrConflict and propagates as-is.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// SignIn authenticates an email/password account.
//
// A missing account and a wrong password both return the same Unauthorized
// error, so a caller cannot probe which emails are registered.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	if user.PasswordHash == "" {
		// OAuth-only account; there is no password to check.
		return nil, apperror.Unauthorized("invalid email or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	s.logger.Info("user signed in", slog.String("userID", user.ID))

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// OAuthLogin handles the Google OAuth callback.
//
// After the provider redirects back with an authorization code, this method:
//
//  1. Exchanges the code for the Google profile
//  2. Upserts the user (create on first login, refresh name/avatar after)
//  3. Issues a JWT so the handler can set the session cookie
//
// It does NOT set cookies or read HTTP requests — those are handler concerns.
func (s *AuthService) OAuthLogin(ctx context.Context, code string) (*AuthResult, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	profile, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Unauthorized("oauth exchange failed")
	}

	user := &model.User{
		Name:      profile.Name,
		Email:     strings.ToLower(profile.Email),
		AvatarURL: profile.Picture,
	}

	if err := s.users.UpsertOAuth(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (email=%s): %w", user.Email, err)
	}

	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
//
// Used by the /auth/me handler to look up the full user record after the
// middleware validates the JWT and extracts the userID from the token's
// Subject claim.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}
