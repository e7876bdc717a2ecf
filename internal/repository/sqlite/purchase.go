package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	"github.com/slidex/slidex/internal/apperror"
	"github.com/slidex/slidex/internal/model"
	"github.com/slidex/slidex/internal/repository"
)

// PurchaseRepo persists credit purchases keyed by checkout session.
type PurchaseRepo struct {
	conn *sql.DB
}

// compile-time check that *PurchaseRepo implements repository.PurchaseRepository
var _ repository.PurchaseRepository = (*PurchaseRepo)(nil)

// Create opens a pending purchase for a freshly created checkout session.
// stripe_session_id is UNIQUE, so a colliding session id fails with
// apperror.ErrDuplicateSession rather than silently inserting a twin.
func (r *PurchaseRepo) Create(ctx context.Context, p *model.Purchase) error {
	p.ID = xid.New().String()
	p.Status = model.PurchasePending
	p.CreatedAt = time.Now()

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO purchases (id, user_id, credits, amount, status, stripe_session_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.UserID,
		p.Credits,
		p.Amount.String(),
		p.Status,
		p.StripeSessionID,
		p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.DuplicateSession(p.StripeSessionID)
		}
		return fmt.Errorf("sqlite: inserting purchase for session %s: %w", p.StripeSessionID, err)
	}

	return nil
}

// Complete transitions the purchase for sessionID from pending to completed.
//
// THE TRANSITION IS THE LOCK:
// The status = 'pending' guard means only one delivery of a given session
// can ever flip the row. The winner sees one row affected and gets
// first = true — that is the signal to apply the credit. Every replay
// (including a concurrent one racing the winner) affects zero rows, finds
// the record already completed, and gets first = false with no side effect.
func (r *PurchaseRepo) Complete(ctx context.Context, sessionID string, completedAt time.Time) (bool, *model.Purchase, error) {
	res, err := r.conn.ExecContext(ctx,
		`UPDATE purchases SET status = ?, completed_at = ?
		 WHERE stripe_session_id = ? AND status = ?`,
		model.PurchaseCompleted, completedAt, sessionID, model.PurchasePending,
	)
	if err != nil {
		return false, nil, fmt.Errorf("sqlite: completing purchase %s: %w", sessionID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("sqlite: complete rows affected: %w", err)
	}

	purchase, err := r.GetBySessionID(ctx, sessionID)
	if err != nil {
		return false, nil, err
	}

	return affected > 0, purchase, nil
}

// GetBySessionID retrieves a purchase by its checkout session id.
func (r *PurchaseRepo) GetBySessionID(ctx context.Context, sessionID string) (*model.Purchase, error) {
	var (
		p           model.Purchase
		amount      string
		completedAt sql.NullTime
	)

	err := r.conn.QueryRowContext(ctx,
		`SELECT id, user_id, credits, amount, status, stripe_session_id, completed_at, created_at
		 FROM purchases WHERE stripe_session_id = ?`,
		sessionID,
	).Scan(
		&p.ID,
		&p.UserID,
		&p.Credits,
		&amount,
		&p.Status,
		&p.StripeSessionID,
		&completedAt,
		&p.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("purchase", sessionID)
		}
		return nil, fmt.Errorf("sqlite: getting purchase %s: %w", sessionID, err)
	}

	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("sqlite: parsing amount for purchase %s: %w", sessionID, err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}

	return &p, nil
}
