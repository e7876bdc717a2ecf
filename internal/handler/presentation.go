package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/slidex/slidex/internal/auth"
	"github.com/slidex/slidex/internal/model"
	"github.com/slidex/slidex/internal/service"
)

// PresentationHandler exposes the deck generation endpoints.
//
// Each method does the same three things: pull the caller's userID out of
// the request context, decode/validate the HTTP shape, and delegate to
// service.PresentationService. Business rules (credits, status
// transitions, ownership) all live below this layer.
type PresentationHandler struct {
	presentations *service.PresentationService
	logger        *slog.Logger
}

// NewPresentationHandler creates a new PresentationHandler.
func NewPresentationHandler(presentations *service.PresentationService, logger *slog.Logger) *PresentationHandler {
	return &PresentationHandler{
		presentations: presentations,
		logger:        logger,
	}
}

type createPresentationRequest struct {
	Title      string               `json:"title"`
	Prompt     string               `json:"prompt"`
	SlideCount int                  `json:"slideCount"`
	Template   string               `json:"template"`
	Content    []model.SlideOutline `json:"content"`
}

// HandleCreate runs the full generation flow for one deck.
//
// HTTP: POST /presentations/create
// Auth: Required
//
// Responds 201 with the record and the post-debit balance even when the
// generation call failed — the record's status field carries the outcome.
// Only a rejected input or an unpayable request gets an error status.
func (h *PresentationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createPresentationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "request body must be valid JSON",
		})
		return
	}

	result, err := h.presentations.Create(r.Context(), userID, service.CreateInput{
		Title:      req.Title,
		Prompt:     req.Prompt,
		SlideCount: req.SlideCount,
		Template:   req.Template,
		Outlines:   req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":          true,
		"presentation":     result.Presentation,
		"remainingCredits": result.RemainingCredits,
	})
}

// historyItem is the trimmed shape the history list uses. The full record
// (content JSON, URLs) is only served by the detail endpoint.
type historyItem struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CreatedAt  string `json:"created_at"`
	SlideCount int    `json:"slide_count"`
	Template   string `json:"template"`
	Status     string `json:"status"`
}

// HandleHistory lists the caller's presentations, newest first.
//
// HTTP: GET /presentations/history
// Auth: Required
func (h *PresentationHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	list, err := h.presentations.History(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]historyItem, len(list))
	for i, p := range list {
		items[i] = historyItem{
			ID:         p.ID,
			Title:      p.Title,
			CreatedAt:  p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			SlideCount: p.SlideCount,
			Template:   p.Template,
			Status:     string(p.Status),
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleGet returns one presentation with its stored outline content.
//
// HTTP: GET /presentations/{id}
// Auth: Required — a record owned by someone else reads as 404.
func (h *PresentationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	pres, err := h.presentations.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pres)
}

// HandleGeneratePDF converts a completed deck to PDF.
//
// HTTP: POST /presentations/{id}/generate-pdf
// Auth: Required
//
// Repeated requests return the same URL; the conversion runs once.
func (h *PresentationHandler) HandleGeneratePDF(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	pdfURL, err := h.presentations.GeneratePDF(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"pdf_url": pdfURL,
	})
}

// HandleDownload streams the deck file back to the browser.
//
// HTTP: GET /presentations/download?id=xxx
// Auth: Required
func (h *PresentationHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "missing presentation id",
		})
		return
	}

	dl, err := h.presentations.Download(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(dl.Data)))
	if _, err := w.Write(dl.Data); err != nil {
		h.logger.Error("download stream interrupted",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

type generateOutlineRequest struct {
	Prompt     string `json:"prompt"`
	SlideCount int    `json:"slideCount"`
	Language   string `json:"language"`
}

// HandleGenerateOutline forwards a prompt to the generation service and
// returns outline sections with locally assigned IDs.
//
// HTTP: POST /presentations/generate-outline
//
// Public by design: the editor lets a visitor draft an outline before
// signing up. Only deck generation costs credits.
func (h *PresentationHandler) HandleGenerateOutline(w http.ResponseWriter, r *http.Request) {
	var req generateOutlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "request body must be valid JSON",
		})
		return
	}

	result, err := h.presentations.GenerateOutline(r.Context(), req.Prompt, req.SlideCount, req.Language)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"outlines": result.Outlines,
		"metadata": result.Metadata,
	})
}
