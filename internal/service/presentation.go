package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slidex/slidex/internal/apperror"
	"github.com/slidex/slidex/internal/generator"
	"github.com/slidex/slidex/internal/model"
	"github.com/slidex/slidex/internal/repository"
	"github.com/slidex/slidex/internal/storage"
)

// GenerationCost is the number of credits one deck generation debits.
const GenerationCost = 1

// MIME types for the two artifact formats we store.
const (
	pptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	pdfContentType  = "application/pdf"
)

// PresentationService orchestrates deck generation: credit debit, record
// lifecycle, the external generation service, and artifact storage.
type PresentationService struct {
	presentations repository.PresentationRepository
	users         repository.UserRepository
	generator     generator.Generator
	storage       storage.Storage
	logger        *slog.Logger
}

// NewPresentationService creates a PresentationService with all required
// dependencies.
func NewPresentationService(
	presentations repository.PresentationRepository,
	users repository.UserRepository,
	gen generator.Generator,
	store storage.Storage,
	logger *slog.Logger,
) *PresentationService {
	return &PresentationService{
		presentations: presentations,
		users:         users,
		generator:     gen,
		storage:       store,
		logger:        logger,
	}
}

// CreateInput carries the fields of a deck generation request.
type CreateInput struct {
	Title      string
	Prompt     string
	SlideCount int
	Template   string
	Outlines   []model.SlideOutline
}

// CreateResult bundles the presentation record with the caller's post-debit
// balance so the handler can answer in one response.
type CreateResult struct {
	Presentation     *model.Presentation
	RemainingCredits int
}

// Create runs the full generation flow for one deck.
//
// ORDERING (and why it matters):
//
//  1. Validate the input shape. No state changes on bad input.
//  2. Debit one credit. The debit is a single guarded UPDATE, so the
//     balance check and the deduction are one atomic step — two requests
//     racing on a balance of 1 cannot both pass.
//  3. Create the presentation record with status "processing".
//  4. Call the generation service (bounded timeout inside the client),
//     upload the deck, mark the record "completed".
//  5. On any generation/upload failure, mark the record "failed". The
//     debited credit is NOT refunded.
//
// The method returns the record and the post-debit balance even when
// generation failed — the record's status tells the caller what happened.
func (s *PresentationService) Create(ctx context.Context, userID string, in CreateInput) (*CreateResult, error) {
	// === VALIDATION ===
	in.Title = strings.TrimSpace(in.Title)
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.Template = strings.TrimSpace(in.Template)

	if in.Title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if in.Prompt == "" {
		return nil, apperror.ValidationFailed("prompt", "prompt is required")
	}
	if in.SlideCount <= 0 {
		return nil, apperror.ValidationFailed("slideCount", "slideCount must be positive")
	}
	if in.Template == "" {
		return nil, apperror.ValidationFailed("template", "template is required")
	}

	// === DEBIT ===
	// Runs before the record exists: a request that cannot pay creates
	// nothing. InsufficientCredits propagates to the handler as 400.
	balance, err := s.users.DebitCredits(ctx, userID, GenerationCost)
	if err != nil {
		return nil, err
	}

	// === CREATE THE RECORD ===
	contentJSON, err := json.Marshal(in.Outlines)
	if err != nil {
		return nil, fmt.Errorf("service/presentation: encoding outline content: %w", err)
	}

	pres := &model.Presentation{
		UserID:     userID,
		Title:      in.Title,
		Prompt:     in.Prompt,
		SlideCount: in.SlideCount,
		Template:   in.Template,
		Content:    string(contentJSON),
	}
	if err := s.presentations.Create(ctx, pres); err != nil {
		s.logger.Error("failed to create presentation record",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/presentation: creating record: %w", err)
	}

	s.logger.Info("presentation created",
		slog.String("id", pres.ID),
		slog.String("userID", userID),
		slog.Int("remainingCredits", balance),
	)

	// === GENERATE AND STORE ===
	if err := s.generate(ctx, pres, in); err != nil {
		s.logger.Error("presentation generation failed",
			slog.String("id", pres.ID),
			slog.String("error", err.Error()),
		)
		if ferr := s.presentations.MarkFailed(ctx, pres.ID); ferr != nil {
			s.logger.Error("failed to mark presentation failed",
				slog.String("id", pres.ID),
				slog.String("error", ferr.Error()),
			)
		} else {
			pres.Status = model.StatusFailed
		}
	}

	return &CreateResult{Presentation: pres, RemainingCredits: balance}, nil
}

// generate renders the deck, uploads it, and completes the record.
func (s *PresentationService) generate(ctx context.Context, pres *model.Presentation, in CreateInput) error {
	deck, err := s.generator.GenerateDeck(ctx, in.Title, in.Outlines, in.Template, "english")
	if err != nil {
		return err
	}

	objectPath := fmt.Sprintf("%s/%s.pptx", pres.UserID, uuid.NewString())
	fileURL, err := s.storage.Upload(ctx, objectPath, pptxContentType, deck)
	if err != nil {
		return fmt.Errorf("uploading deck: %w", err)
	}

	if err := s.presentations.MarkCompleted(ctx, pres.ID, fileURL, objectPath); err != nil {
		return fmt.Errorf("completing record: %w", err)
	}

	pres.Status = model.StatusCompleted
	pres.FileURL = fileURL
	pres.StoragePath = objectPath

	s.logger.Info("presentation completed",
		slog.String("id", pres.ID),
		slog.String("path", objectPath),
	)
	return nil
}

// Get returns one presentation. Ownership is enforced in the repository
// query, so a foreign ID reads as NotFound.
func (s *PresentationService) Get(ctx context.Context, userID, id string) (*model.Presentation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "presentation ID is required")
	}
	return s.presentations.GetByID(ctx, id, userID)
}

// History returns the caller's presentations, newest first.
func (s *PresentationService) History(ctx context.Context, userID string) ([]model.Presentation, error) {
	list, err := s.presentations.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list presentations",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/presentation: listing: %w", err)
	}
	return list, nil
}

// OutlineResult is the shaped response of an outline generation call.
type OutlineResult struct {
	Outlines []model.SlideOutline
	Metadata OutlineMetadata
}

// OutlineMetadata describes an outline generation run.
type OutlineMetadata struct {
	SlideCount  int       `json:"slideCount"`
	Language    string    `json:"language"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// GenerateOutline forwards a prompt to the generation service and shapes
// the sections into outlines with locally assigned IDs. It costs no
// credits; only deck generation debits.
func (s *PresentationService) GenerateOutline(ctx context.Context, prompt string, slideCount int, language string) (*OutlineResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperror.ValidationFailed("prompt", "prompt is required")
	}
	if slideCount <= 0 {
		return nil, apperror.ValidationFailed("slideCount", "slideCount must be positive")
	}
	if language == "" {
		return nil, apperror.ValidationFailed("language", "language is required")
	}

	sections, err := s.generator.GenerateOutline(ctx, prompt, slideCount, language)
	if err != nil {
		return nil, err
	}

	// The IDs only need to be unique within this response; the frontend
	// uses them as drag-and-drop keys.
	now := time.Now()
	millis := now.UnixMilli()
	outlines := make([]model.SlideOutline, len(sections))
	for i, sec := range sections {
		outlines[i] = model.SlideOutline{
			ID:      fmt.Sprintf("slide-%d-%d", millis, i),
			Title:   sec.Title,
			Content: sec.Content,
		}
	}

	return &OutlineResult{
		Outlines: outlines,
		Metadata: OutlineMetadata{
			SlideCount:  len(outlines),
			Language:    language,
			GeneratedAt: now,
		},
	}, nil
}

// GeneratePDF converts a completed deck to PDF and attaches it to the
// record.
//
// The attach is set-once in the repository: if a PDF already exists (a
// retried request, a double click), the stored URL comes back unchanged
// and no second conversion runs.
func (s *PresentationService) GeneratePDF(ctx context.Context, userID, id string) (string, error) {
	pres, err := s.presentations.GetByID(ctx, id, userID)
	if err != nil {
		return "", err
	}

	if pres.PDFFileURL != "" {
		return pres.PDFFileURL, nil
	}
	if pres.Status != model.StatusCompleted || pres.FileURL == "" {
		return "", apperror.ValidationFailed("id", "presentation has no completed deck to convert")
	}

	pdf, err := s.generator.ConvertToPDF(ctx, pres.FileURL)
	if err != nil {
		return "", err
	}

	objectPath := fmt.Sprintf("%s/%s.pdf", userID, uuid.NewString())
	pdfURL, err := s.storage.Upload(ctx, objectPath, pdfContentType, pdf)
	if err != nil {
		return "", fmt.Errorf("service/presentation: uploading pdf: %w", err)
	}

	// AttachPDF returns whichever URL won the race to attach first.
	stored, err := s.presentations.AttachPDF(ctx, id, pdfURL, objectPath)
	if err != nil {
		return "", err
	}

	s.logger.Info("pdf attached",
		slog.String("id", id),
		slog.String("url", stored),
	)
	return stored, nil
}

// DownloadResult carries the deck bytes plus what the handler needs for
// Content-Disposition.
type DownloadResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Download fetches the completed deck file for the caller.
func (s *PresentationService) Download(ctx context.Context, userID, id string) (*DownloadResult, error) {
	pres, err := s.presentations.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if pres.FileURL == "" {
		return nil, apperror.NotFound("presentation file", id)
	}

	data, err := s.storage.Fetch(ctx, pres.FileURL)
	if err != nil {
		return nil, apperror.Upstream("storage", err)
	}

	return &DownloadResult{
		Filename:    pres.Title + ".pptx",
		ContentType: pptxContentType,
		Data:        data,
	}, nil
}
