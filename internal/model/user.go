// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account and its credit balance.
//
// Users arrive two ways: email/password signup (PasswordHash is set) or an
// OAuth login (PasswordHash stays empty — the identity provider vouches for
// them). Either way the account gets 10 free credits on first creation.
//
// WHY Credits int (not a separate ledger table)?
// The balance is the only hot shared-mutable field in the system. It is never
// touched except through the repository's guarded debit/credit statements,
// and the credits column carries a CHECK (credits >= 0) constraint so the
// database itself rejects any write that would take it negative.
type User struct {
	ID           string    `json:"id"         db:"id"`
	Name         string    `json:"name"       db:"name"`
	Email        string    `json:"email"      db:"email"`
	AvatarURL    string    `json:"avatarUrl"  db:"avatar_url"`
	PasswordHash string    `json:"-"          db:"password_hash"` // never serialized
	Credits      int       `json:"credits"    db:"credits"`
	CreatedAt    time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"  db:"updated_at"`
}
