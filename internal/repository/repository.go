// Package repository defines the persistence interfaces for the application.
//
// The service layer programs against these interfaces; the sqlite
// subpackage provides the real implementation and the service tests provide
// in-memory mocks. The three interfaces map onto the three records the
// system keeps books on: user accounts (and their credit balances),
// presentation generation jobs, and credit purchases.
package repository

import (
	"context"
	"time"

	"github.com/slidex/slidex/internal/model"
)

// UserRepository persists accounts and owns the credit ledger.
//
// DebitCredits and CreditCredits are the ONLY ways a balance changes. Both
// must be atomic with respect to concurrent calls for the same user — the
// sqlite implementation uses single guarded UPDATE statements, not a
// read-then-write pair, so two racing debits can never both pass a balance
// check that sequential execution would have rejected. An in-process mutex
// would not be enough: multiple server instances may share the database.
type UserRepository interface {
	// Create inserts a new account. Fails with apperror.ErrConflict if the
	// email is already registered.
	Create(ctx context.Context, user *model.User) error

	// UpsertOAuth creates or refreshes a profile from identity-provider
	// claims. New accounts receive the initial credit grant; existing
	// accounts keep their balance untouched.
	UpsertOAuth(ctx context.Context, user *model.User) error

	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// Credits returns the current balance.
	Credits(ctx context.Context, userID string) (int, error)

	// DebitCredits atomically decrements the balance by amount (> 0) and
	// returns the new balance. Fails with apperror.ErrInsufficientCredits
	// if the balance is lower than amount, leaving it unchanged.
	DebitCredits(ctx context.Context, userID string, amount int) (int, error)

	// CreditCredits atomically increments the balance by amount (> 0) and
	// returns the new balance.
	CreditCredits(ctx context.Context, userID string, amount int) (int, error)
}

// PresentationRepository persists generation job records.
//
// Ownership is enforced at the query level: GetByID takes the requesting
// user's id and a record owned by someone else reads as not-found.
type PresentationRepository interface {
	Create(ctx context.Context, p *model.Presentation) error
	GetByID(ctx context.Context, id, userID string) (*model.Presentation, error)

	// ListByUser returns the account's presentations, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Presentation, error)

	// MarkCompleted transitions processing → completed and records the
	// artifact location. Fails with apperror.ErrInvalidTransition if the
	// record is not currently processing.
	MarkCompleted(ctx context.Context, id, fileURL, storagePath string) error

	// MarkFailed transitions processing → failed. Same transition rule.
	MarkFailed(ctx context.Context, id string) error

	// AttachPDF records the derived PDF artifact, at most once. If a PDF is
	// already attached the stored URL is returned unchanged — repeated
	// export requests reuse the first conversion.
	AttachPDF(ctx context.Context, id, pdfURL, pdfStoragePath string) (string, error)
}

// PurchaseRepository persists credit purchases keyed by checkout session.
type PurchaseRepository interface {
	// Create opens a pending purchase. Fails with
	// apperror.ErrDuplicateSession if the session id already exists.
	Create(ctx context.Context, p *model.Purchase) error

	// Complete transitions the purchase for sessionID to completed and
	// stamps completedAt. The first return value is true only for the call
	// that actually performed the transition — a replayed delivery of the
	// same session finds it already completed and gets false. The guarded
	// status update is the lock: two concurrent deliveries cannot both
	// observe "first".
	Complete(ctx context.Context, sessionID string, completedAt time.Time) (bool, *model.Purchase, error)

	GetBySessionID(ctx context.Context, sessionID string) (*model.Purchase, error)
}
