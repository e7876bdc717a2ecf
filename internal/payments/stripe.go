// Package payments wraps the Stripe API for credit pack purchases.
package payments

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// CheckoutSession is the subset of a Stripe checkout session the service
// layer needs.
type CheckoutSession struct {
	ID  string
	URL string
}

// StripeClient represents the payment provider operations the service
// layer depends on.
type StripeClient interface {
	// CreateCheckoutSession starts a hosted checkout for a credit pack.
	CreateCheckoutSession(userID string, credits int, price decimal.Decimal) (*CheckoutSession, error)
	// VerifyEvent checks the webhook signature and parses the event.
	VerifyEvent(payload []byte, signature string) (*stripe.Event, error)
}

// Stripe implements StripeClient against the real Stripe API.
type Stripe struct {
	api           *client.API
	webhookSecret string
	baseURL       string
}

var _ StripeClient = (*Stripe)(nil)

// New creates a Stripe client. baseURL is the public frontend URL used for
// checkout redirect targets.
func New(secretKey, webhookSecret, baseURL string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{
		api:           api,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
	}
}

// CreateCheckoutSession creates a one-time card payment session. The user
// and credit amount ride along as metadata so the webhook can match the
// payment back to a purchase.
func (s *Stripe) CreateCheckoutSession(userID string, credits int, price decimal.Decimal) (*CheckoutSession, error) {
	// Stripe wants the amount in cents.
	unitAmount := price.Mul(decimal.NewFromInt(100)).IntPart()

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%d Slide Credits", credits)),
					},
					UnitAmount: stripe.Int64(unitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.baseURL + "/dashboard?success=true"),
		CancelURL:  stripe.String(s.baseURL + "/dashboard?canceled=true"),
	}
	params.AddMetadata("userId", userID)
	params.AddMetadata("credits", fmt.Sprintf("%d", credits))

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// VerifyEvent validates the Stripe-Signature header against the webhook
// signing secret and returns the parsed event. API version mismatches are
// tolerated: the dashboard's webhook config can lag the pinned library
// version, and the fields we read are stable across versions.
func (s *Stripe) VerifyEvent(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	return &event, nil
}
