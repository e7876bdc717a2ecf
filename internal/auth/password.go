// Package auth — password hashing for email/password accounts.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, which is the point: it makes brute-force
// attacks expensive. It also generates and embeds a random salt per hash,
// so two users with the same password get different hashes and no separate
// salt column is needed. Never store passwords with fast hashes (MD5,
// SHA-256) — those fall to GPU rigs in minutes.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly ~250ms on a
// modern server — negligible for a sign-in, brutal for an attacker.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected in tests —
// a lower cost makes tests much faster without changing the logic under
// test.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// newPasswordServiceWithCost creates a PasswordService with a custom cost.
// Unexported helper used by the tests in this package.
func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with a low bcrypt
// cost for tests in other packages. Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is self-contained (version, cost, salt, hash) and is stored
// directly in the password_hash column.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		// bcrypt silently truncates passwords longer than 72 bytes.
		// Reject them explicitly so callers aren't surprised.
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// Returns nil if they match. bcrypt.CompareHashAndPassword compares in
// constant time, so response timing leaks nothing.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
