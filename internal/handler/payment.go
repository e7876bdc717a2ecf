package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/slidex/slidex/internal/auth"
	"github.com/slidex/slidex/internal/service"
)

// maxWebhookBody caps how much of a webhook delivery we read. Stripe
// events are a few KB; anything bigger is not a legitimate delivery.
const maxWebhookBody = 1 << 16

// PaymentHandler exposes checkout and the Stripe webhook endpoint.
type PaymentHandler struct {
	payments *service.PaymentService
	logger   *slog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

type checkoutRequest struct {
	Credits int             `json:"credits"`
	Price   decimal.Decimal `json:"price"`
}

// HandleCheckout opens a hosted checkout session for a credit pack.
//
// HTTP: POST /payments/checkout
// Auth: Required
//
// The response carries the URL the frontend redirects the buyer to.
// Credits land only when the webhook confirms payment.
func (h *PaymentHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "request body must be valid JSON",
		})
		return
	}

	sessionURL, err := h.payments.Checkout(r.Context(), userID, req.Credits, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"sessionUrl": sessionURL,
	})
}

// HandleWebhook processes a raw delivery from Stripe.
//
// HTTP: POST /payments/webhook
// Auth: None — the Stripe-Signature header IS the authentication. The
// body must be read raw: re-serializing it would break the signature.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "could not read webhook body",
		})
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.logger.Error("webhook processing failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
