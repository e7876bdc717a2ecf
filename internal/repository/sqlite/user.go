package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/slidex/slidex/internal/apperror"
	"github.com/slidex/slidex/internal/model"
	"github.com/slidex/slidex/internal/repository"
)

// UserRepo persists accounts and owns the credit ledger.
type UserRepo struct {
	conn *sql.DB
}

// compile-time check that *UserRepo implements repository.UserRepository
var _ repository.UserRepository = (*UserRepo)(nil)

// initialCredits is the free grant every new account starts with.
const initialCredits = 10

// Create inserts a new account from an email/password signup.
//
// The email column is UNIQUE, so signing up twice with the same address
// surfaces as a constraint violation, which we translate into
// apperror.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.Credits = initialCredits
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, avatar_url, password_hash, credits, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.AvatarURL,
		user.PasswordHash,
		user.Credits,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// UpsertOAuth creates or refreshes a profile from identity-provider claims.
//
// First login → INSERT with the initial credit grant. Subsequent logins →
// UPDATE name/avatar in case they changed at the provider, leaving the
// credit balance strictly alone. We match on email because that is the
// stable claim the provider vouches for.
func (r *UserRepo) UpsertOAuth(ctx context.Context, user *model.User) error {
	var existingID string
	err := r.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE email = ?`, user.Email,
	).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by email %s: %w", user.Email, err)
	}

	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = time.Now()
		_, err = r.conn.ExecContext(ctx,
			`UPDATE users SET name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
			user.Name,
			user.AvatarURL,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}

		// Refresh the caller's view of the balance.
		return r.conn.QueryRowContext(ctx,
			`SELECT credits FROM users WHERE id = ?`, user.ID,
		).Scan(&user.Credits)
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.Credits = initialCredits
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = r.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, avatar_url, password_hash, credits, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.AvatarURL,
		user.Credits,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting oauth user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, `SELECT id, name, email, avatar_url, password_hash, credits, created_at, updated_at
		 FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email address.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `SELECT id, name, email, avatar_url, password_hash, credits, created_at, updated_at
		 FROM users WHERE email = ?`, email)
}

func (r *UserRepo) getUser(ctx context.Context, query, arg string) (*model.User, error) {
	var u model.User

	err := r.conn.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.Credits,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", arg)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", arg, err)
	}

	return &u, nil
}

// Credits returns the current balance for the account.
func (r *UserRepo) Credits(ctx context.Context, userID string) (int, error) {
	var credits int
	err := r.conn.QueryRowContext(ctx,
		`SELECT credits FROM users WHERE id = ?`, userID,
	).Scan(&credits)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, apperror.NotFound("user", userID)
		}
		return 0, fmt.Errorf("sqlite: reading credits for %s: %w", userID, err)
	}
	return credits, nil
}

// DebitCredits atomically decrements the balance by amount.
//
// THE GUARD IS THE LOCK:
// The WHERE clause re-checks the balance inside the same statement that
// decrements it. SQLite runs the statement atomically, so of two concurrent
// debits against a balance of 1, exactly one matches the guard and the other
// affects zero rows. A separate SELECT-then-UPDATE would leave a window
// where both pass the check — and unlike an in-process mutex, the guard
// also holds across multiple server instances sharing the database.
//
// Zero rows affected means either the guard failed (insufficient credits)
// or the user doesn't exist — a follow-up read tells the two apart.
func (r *UserRepo) DebitCredits(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, apperror.ValidationFailed("amount", "debit amount must be positive")
	}

	res, err := r.conn.ExecContext(ctx,
		`UPDATE users SET credits = credits - ?, updated_at = ?
		 WHERE id = ? AND credits >= ?`,
		amount, time.Now(), userID, amount,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: debiting %d credits from %s: %w", amount, userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: debit rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish "no such user" from "not enough credits". Either way
		// the balance was not touched.
		if _, err := r.Credits(ctx, userID); err != nil {
			return 0, err
		}
		return 0, apperror.InsufficientCredits(userID)
	}

	return r.Credits(ctx, userID)
}

// CreditCredits atomically increments the balance by amount. There is no
// upper bound on a balance.
func (r *UserRepo) CreditCredits(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, apperror.ValidationFailed("amount", "credit amount must be positive")
	}

	res, err := r.conn.ExecContext(ctx,
		`UPDATE users SET credits = credits + ?, updated_at = ? WHERE id = ?`,
		amount, time.Now(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: crediting %d credits to %s: %w", amount, userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: credit rows affected: %w", err)
	}
	if affected == 0 {
		return 0, apperror.NotFound("user", userID)
	}

	return r.Credits(ctx, userID)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. modernc.org/sqlite surfaces these as plain errors with the
// constraint name in the message, so string matching is the practical check.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
