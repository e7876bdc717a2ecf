// Package auth provides session tokens, password hashing, and the OAuth
// identity-provider integration.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User signs up or signs in (email/password) or completes an OAuth login
// 2. Server issues a JWT access token, stores it in an HttpOnly cookie
// 3. On subsequent API calls, middleware reads the cookie, validates the JWT,
//    and sets the userID in the request context
//
// WHY JWT?
// JWT is stateless — the server doesn't need to store session data. All the
// information needed (userID, expiry) is inside the signed token, and the
// signature ensures nobody can tamper with it without the secret key.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionDuration is how long an issued session token stays valid. After
// expiry the user signs in again.
const SessionDuration = 24 * time.Hour

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens. The same
// secret must be used for both operations.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. It embeds jwt.RegisteredClaims which includes
// the standard fields; we use "sub" (Subject) to carry the internal user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a new JWT session token for the given userID.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, fast, fine for a
// single shared secret across server instances.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, SessionDuration)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to produce already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    "slidex",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string.
// Returns the userID (stored in the "sub" claim) if the token is valid.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches "slidex" (prevents tokens from other apps)
//   - Algorithm is HS256 — passing jwt.WithValidMethods prevents
//     algorithm-confusion attacks where an attacker supplies "none"
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer("slidex"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	userID := c.Subject
	if userID == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return userID, nil
}
