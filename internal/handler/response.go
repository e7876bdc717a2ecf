package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// Every error response from the API has the same shape:
//   {"error": "validation_error", "message": "title is required"}
//
// so the frontend always knows what fields to expect, regardless of
// whether it's a 400, 404, or 500.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/slidex/slidex/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status code must be set BEFORE writing the body — once
// Encode calls w.Write() the headers are on the wire and any later
// changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent — we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and
// sends it.
//
// This is the single place where domain errors (from the service layer)
// get translated to HTTP. The service layer returns apperror sentinels;
// errors.Is walks the whole chain via Unwrap, so a sentinel survives any
// amount of fmt.Errorf("%w") wrapping along the way.
//
// Insufficient credits is a 400, not a 402: the client did nothing
// protocol-level wrong, the request is simply not payable right now.
// Transition and duplicate-session errors map to 500 — they indicate a
// bug or a lost race that the client cannot fix by changing the request.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrInsufficientCredits):
			status = http.StatusBadRequest
			errorType = "insufficient_credits"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUpstream):
			status = http.StatusInternalServerError
			errorType = "upstream_error"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error — return a generic 500. The raw error message might
	// contain SQL or file paths, so it never reaches the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
