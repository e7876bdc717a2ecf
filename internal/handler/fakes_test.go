package handler_test

// In-memory fakes for the repository and collaborator interfaces. The
// handler tests wire REAL services over these fakes, so every test
// exercises the full handler → service → repository path with only the
// process boundary (DB, Stripe, generation service) swapped out.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"github.com/slidex/slidex/internal/apperror"
	"github.com/slidex/slidex/internal/generator"
	"github.com/slidex/slidex/internal/model"
	"github.com/slidex/slidex/internal/payments"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- users ---

type fakeUserRepo struct {
	users  map[string]*model.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) seed(t *testing.T, email string, credits int) *model.User {
	t.Helper()
	f.nextID++
	u := &model.User{
		ID:      fmt.Sprintf("user-%d", f.nextID),
		Name:    "Test User",
		Email:   email,
		Credits: credits,
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.Credits = 10
	user.CreatedAt = time.Now()
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) UpsertOAuth(_ context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			u.Name = user.Name
			u.AvatarURL = user.AvatarURL
			*user = *u
			return nil
		}
	}
	return f.Create(context.Background(), user)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) Credits(_ context.Context, userID string) (int, error) {
	u, ok := f.users[userID]
	if !ok {
		return 0, apperror.NotFound("user", userID)
	}
	return u.Credits, nil
}

func (f *fakeUserRepo) DebitCredits(_ context.Context, userID string, amount int) (int, error) {
	u, ok := f.users[userID]
	if !ok {
		return 0, apperror.NotFound("user", userID)
	}
	if u.Credits < amount {
		return 0, apperror.InsufficientCredits(userID)
	}
	u.Credits -= amount
	return u.Credits, nil
}

func (f *fakeUserRepo) CreditCredits(_ context.Context, userID string, amount int) (int, error) {
	u, ok := f.users[userID]
	if !ok {
		return 0, apperror.NotFound("user", userID)
	}
	u.Credits += amount
	return u.Credits, nil
}

// --- presentations ---

type fakePresentationRepo struct {
	records []*model.Presentation
	nextID  int
}

func newFakePresentationRepo() *fakePresentationRepo {
	return &fakePresentationRepo{}
}

func (f *fakePresentationRepo) find(id string) *model.Presentation {
	for _, p := range f.records {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *fakePresentationRepo) Create(_ context.Context, p *model.Presentation) error {
	f.nextID++
	p.ID = fmt.Sprintf("pres-%d", f.nextID)
	p.Status = model.StatusProcessing
	p.CreatedAt = time.Now()
	stored := *p
	f.records = append(f.records, &stored)
	return nil
}

func (f *fakePresentationRepo) GetByID(_ context.Context, id, userID string) (*model.Presentation, error) {
	p := f.find(id)
	if p == nil || p.UserID != userID {
		return nil, apperror.NotFound("presentation", id)
	}
	result := *p
	return &result, nil
}

func (f *fakePresentationRepo) ListByUser(_ context.Context, userID string) ([]model.Presentation, error) {
	result := []model.Presentation{}
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].UserID == userID {
			result = append(result, *f.records[i])
		}
	}
	return result, nil
}

func (f *fakePresentationRepo) MarkCompleted(_ context.Context, id, fileURL, storagePath string) error {
	p := f.find(id)
	if p == nil {
		return apperror.NotFound("presentation", id)
	}
	if p.Status != model.StatusProcessing {
		return apperror.InvalidTransition("presentation", id, string(model.StatusCompleted))
	}
	p.Status = model.StatusCompleted
	p.FileURL = fileURL
	p.StoragePath = storagePath
	return nil
}

func (f *fakePresentationRepo) MarkFailed(_ context.Context, id string) error {
	p := f.find(id)
	if p == nil {
		return apperror.NotFound("presentation", id)
	}
	if p.Status != model.StatusProcessing {
		return apperror.InvalidTransition("presentation", id, string(model.StatusFailed))
	}
	p.Status = model.StatusFailed
	return nil
}

func (f *fakePresentationRepo) AttachPDF(_ context.Context, id, pdfURL, pdfStoragePath string) (string, error) {
	p := f.find(id)
	if p == nil {
		return "", apperror.NotFound("presentation", id)
	}
	if p.PDFFileURL != "" {
		return p.PDFFileURL, nil
	}
	p.PDFFileURL = pdfURL
	p.PDFStoragePath = pdfStoragePath
	return pdfURL, nil
}

// --- purchases ---

type fakePurchaseRepo struct {
	purchases map[string]*model.Purchase
	nextID    int
}

func newFakePurchaseRepo() *fakePurchaseRepo {
	return &fakePurchaseRepo{purchases: make(map[string]*model.Purchase)}
}

func (f *fakePurchaseRepo) Create(_ context.Context, p *model.Purchase) error {
	if _, ok := f.purchases[p.StripeSessionID]; ok {
		return apperror.DuplicateSession(p.StripeSessionID)
	}
	f.nextID++
	p.ID = fmt.Sprintf("purchase-%d", f.nextID)
	p.Status = model.PurchasePending
	p.CreatedAt = time.Now()
	stored := *p
	f.purchases[p.StripeSessionID] = &stored
	return nil
}

func (f *fakePurchaseRepo) Complete(_ context.Context, sessionID string, completedAt time.Time) (bool, *model.Purchase, error) {
	p, ok := f.purchases[sessionID]
	if !ok {
		return false, nil, apperror.NotFound("purchase", sessionID)
	}
	if p.Status == model.PurchaseCompleted {
		result := *p
		return false, &result, nil
	}
	p.Status = model.PurchaseCompleted
	p.CompletedAt = &completedAt
	result := *p
	return true, &result, nil
}

func (f *fakePurchaseRepo) GetBySessionID(_ context.Context, sessionID string) (*model.Purchase, error) {
	p, ok := f.purchases[sessionID]
	if !ok {
		return nil, apperror.NotFound("purchase", sessionID)
	}
	result := *p
	return &result, nil
}

// --- generator ---

type fakeGenerator struct {
	failDeck bool
}

func (f *fakeGenerator) GenerateOutline(_ context.Context, prompt string, slideCount int, language string) ([]generator.OutlineSection, error) {
	return []generator.OutlineSection{
		{Title: "Section One", Content: []string{"a point"}},
		{Title: "Section Two", Content: []string{"another point"}},
	}, nil
}

func (f *fakeGenerator) GenerateDeck(_ context.Context, title string, outlines []model.SlideOutline, templateID, language string) ([]byte, error) {
	if f.failDeck {
		return nil, apperror.Upstream("generation service", fmt.Errorf("render failed"))
	}
	return []byte("pptx-bytes"), nil
}

func (f *fakeGenerator) ConvertToPDF(_ context.Context, fileURL string) ([]byte, error) {
	return []byte("pdf-bytes"), nil
}

// --- storage ---

type fakeStorage struct{}

func (fakeStorage) Upload(_ context.Context, objectPath, contentType string, data []byte) (string, error) {
	return "https://storage.test/" + objectPath, nil
}

func (fakeStorage) Fetch(_ context.Context, url string) ([]byte, error) {
	return []byte("stored-bytes"), nil
}

// --- stripe ---

type fakeStripeClient struct {
	sessionID string
	event     *stripe.Event
}

func (f *fakeStripeClient) CreateCheckoutSession(userID string, credits int, price decimal.Decimal) (*payments.CheckoutSession, error) {
	return &payments.CheckoutSession{
		ID:  f.sessionID,
		URL: "https://checkout.stripe.test/" + f.sessionID,
	}, nil
}

func (f *fakeStripeClient) VerifyEvent(payload []byte, signature string) (*stripe.Event, error) {
	if signature == "" || f.event == nil {
		return nil, fmt.Errorf("no signatures found matching the expected signature for payload")
	}
	return f.event, nil
}
