package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"github.com/slidex/slidex/internal/apperror"
	"github.com/slidex/slidex/internal/model"
	"github.com/slidex/slidex/internal/payments"
	"github.com/slidex/slidex/internal/repository"
)

// PaymentService handles credit pack purchases: opening checkout sessions
// and settling them from webhook deliveries.
type PaymentService struct {
	purchases repository.PurchaseRepository
	users     repository.UserRepository
	stripe    payments.StripeClient
	logger    *slog.Logger
}

// NewPaymentService creates a PaymentService with all required dependencies.
func NewPaymentService(
	purchases repository.PurchaseRepository,
	users repository.UserRepository,
	stripeClient payments.StripeClient,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		purchases: purchases,
		users:     users,
		stripe:    stripeClient,
		logger:    logger,
	}
}

// Checkout opens a hosted checkout session for a credit pack and records
// the pending purchase. The caller is redirected to the returned URL;
// credits are granted only when the webhook confirms payment.
func (s *PaymentService) Checkout(ctx context.Context, userID string, credits int, price decimal.Decimal) (string, error) {
	if credits <= 0 {
		return "", apperror.ValidationFailed("credits", "credits must be positive")
	}
	if !price.IsPositive() {
		return "", apperror.ValidationFailed("price", "price must be positive")
	}

	session, err := s.stripe.CreateCheckoutSession(userID, credits, price)
	if err != nil {
		return "", apperror.Upstream("stripe", err)
	}

	purchase := &model.Purchase{
		UserID:          userID,
		Credits:         credits,
		Amount:          price,
		StripeSessionID: session.ID,
	}
	if err := s.purchases.Create(ctx, purchase); err != nil {
		return "", fmt.Errorf("service/payment: recording purchase: %w", err)
	}

	s.logger.Info("checkout session opened",
		slog.String("userID", userID),
		slog.String("sessionID", session.ID),
		slog.Int("credits", credits),
	)

	return session.URL, nil
}

// HandleWebhook processes a raw webhook delivery from Stripe.
//
// Only checkout.session.completed changes state; every other event type is
// acknowledged and dropped. Completion must be idempotent because Stripe
// retries deliveries: the purchase repository's Complete reports whether
// THIS delivery flipped the purchase from pending, and credits are granted
// only on that first flip.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.stripe.VerifyEvent(payload, signature)
	if err != nil {
		return apperror.ValidationFailed("signature", "webhook signature verification failed")
	}

	if event.Type != "checkout.session.completed" {
		s.logger.Debug("ignoring webhook event", slog.String("type", string(event.Type)))
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return apperror.ValidationFailed("payload", "malformed checkout session in event")
	}

	userID := session.Metadata["userId"]
	credits, err := strconv.Atoi(session.Metadata["credits"])
	if err != nil || userID == "" || credits <= 0 {
		return apperror.ValidationFailed("metadata", "event metadata missing userId or credits")
	}

	first, purchase, err := s.purchases.Complete(ctx, session.ID, time.Now())
	if err != nil {
		return fmt.Errorf("service/payment: completing purchase %s: %w", session.ID, err)
	}

	if !first {
		// Replayed delivery. The credits were granted when the first
		// delivery landed, so the only correct action is none.
		s.logger.Info("webhook replay ignored", slog.String("sessionID", session.ID))
		return nil
	}

	if _, err := s.users.CreditCredits(ctx, purchase.UserID, purchase.Credits); err != nil {
		return fmt.Errorf("service/payment: crediting user %s: %w", purchase.UserID, err)
	}

	s.logger.Info("purchase completed",
		slog.String("sessionID", session.ID),
		slog.String("userID", purchase.UserID),
		slog.Int("credits", purchase.Credits),
	)
	return nil
}
