package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseStatus tracks a checkout session from creation to settlement.
// A purchase moves pending → completed exactly once; a replayed webhook for
// an already-completed session is a no-op.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
)

// Purchase records one credit-pack checkout attempt. It is keyed by the
// payment processor's checkout session id (unique), which is what the
// webhook delivery carries back to us.
//
// Amount is the price in dollars. We use shopspring/decimal rather than
// float64 so money survives round-trips through JSON and the database
// without binary-float rounding artifacts.
type Purchase struct {
	ID              string          `json:"id"                db:"id"`
	UserID          string          `json:"-"                 db:"user_id"`
	Credits         int             `json:"credits"           db:"credits"`
	Amount          decimal.Decimal `json:"amount"            db:"amount"`
	Status          PurchaseStatus  `json:"status"            db:"status"`
	StripeSessionID string          `json:"-"                 db:"stripe_session_id"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt       time.Time       `json:"createdAt"         db:"created_at"`
}
