package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"github.com/slidex/slidex/internal/apperror"
	"github.com/slidex/slidex/internal/auth"
	"github.com/slidex/slidex/internal/generator"
	"github.com/slidex/slidex/internal/model"
	"github.com/slidex/slidex/internal/payments"
	"github.com/slidex/slidex/internal/repository"
)

// =========================================================================
// MOCKS
// =========================================================================
//
// Hand-written in-memory fakes for every collaborator the services depend
// on. Each one implements the same interface as the real thing, so the
// services under test cannot tell the difference. Error injection happens
// through the fail* fields.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- users ---

type mockUserRepo struct {
	users  map[string]*model.User
	nextID int
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

// addUser seeds an account with a specific balance.
func (m *mockUserRepo) addUser(t *testing.T, email string, credits int) *model.User {
	t.Helper()
	m.nextID++
	user := &model.User{
		ID:      fmt.Sprintf("user-%d", m.nextID),
		Name:    "Test User",
		Email:   email,
		Credits: credits,
	}
	m.users[user.ID] = user
	return user
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	user.Credits = 10
	user.CreatedAt = time.Now()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) UpsertOAuth(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			u.Name = user.Name
			u.AvatarURL = user.AvatarURL
			*user = *u
			return nil
		}
	}
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	user.Credits = 10
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *user
	return &result, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *mockUserRepo) Credits(_ context.Context, userID string) (int, error) {
	user, ok := m.users[userID]
	if !ok {
		return 0, apperror.NotFound("user", userID)
	}
	return user.Credits, nil
}

func (m *mockUserRepo) DebitCredits(_ context.Context, userID string, amount int) (int, error) {
	user, ok := m.users[userID]
	if !ok {
		return 0, apperror.NotFound("user", userID)
	}
	if user.Credits < amount {
		return 0, apperror.InsufficientCredits(userID)
	}
	user.Credits -= amount
	return user.Credits, nil
}

func (m *mockUserRepo) CreditCredits(_ context.Context, userID string, amount int) (int, error) {
	user, ok := m.users[userID]
	if !ok {
		return 0, apperror.NotFound("user", userID)
	}
	user.Credits += amount
	return user.Credits, nil
}

// --- presentations ---

type mockPresentationRepo struct {
	records    []*model.Presentation
	nextID     int
	failCreate bool
}

var _ repository.PresentationRepository = (*mockPresentationRepo)(nil)

func newMockPresentationRepo() *mockPresentationRepo {
	return &mockPresentationRepo{}
}

func (m *mockPresentationRepo) find(id string) *model.Presentation {
	for _, p := range m.records {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *mockPresentationRepo) Create(_ context.Context, p *model.Presentation) error {
	if m.failCreate {
		return fmt.Errorf("mock: create failed")
	}
	m.nextID++
	p.ID = fmt.Sprintf("pres-%d", m.nextID)
	p.Status = model.StatusProcessing
	p.CreatedAt = time.Now()
	stored := *p
	m.records = append(m.records, &stored)
	return nil
}

func (m *mockPresentationRepo) GetByID(_ context.Context, id, userID string) (*model.Presentation, error) {
	p := m.find(id)
	if p == nil || p.UserID != userID {
		return nil, apperror.NotFound("presentation", id)
	}
	result := *p
	return &result, nil
}

func (m *mockPresentationRepo) ListByUser(_ context.Context, userID string) ([]model.Presentation, error) {
	result := []model.Presentation{}
	// Newest first — records are appended in creation order.
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].UserID == userID {
			result = append(result, *m.records[i])
		}
	}
	return result, nil
}

func (m *mockPresentationRepo) MarkCompleted(_ context.Context, id, fileURL, storagePath string) error {
	p := m.find(id)
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

func (m *mockPresentationRepo) MarkFailed(_ context.Context, id string) error {
	p := m.find(id)
	if p == nil {
		return apperror.NotFound("presentation", id)
	}
	if p.Status != model.StatusProcessing {
		return apperror.InvalidTransition("presentation", id, string(model.StatusFailed))
	}
	p.Status = model.StatusFailed
	return nil
}

func (m *mockPresentationRepo) AttachPDF(_ context.Context, id, pdfURL, pdfStoragePath string) (string, error) {
	p := m.find(id)
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

type mockPurchaseRepo struct {
	purchases map[string]*model.Purchase
	nextID    int
}

var _ repository.PurchaseRepository = (*mockPurchaseRepo)(nil)

func newMockPurchaseRepo() *mockPurchaseRepo {
	return &mockPurchaseRepo{purchases: make(map[string]*model.Purchase)}
}

func (m *mockPurchaseRepo) Create(_ context.Context, p *model.Purchase) error {
	if _, ok := m.purchases[p.StripeSessionID]; ok {
		return apperror.DuplicateSession(p.StripeSessionID)
	}
	m.nextID++
	p.ID = fmt.Sprintf("purchase-%d", m.nextID)
	p.Status = model.PurchasePending
	p.CreatedAt = time.Now()
	stored := *p
	m.purchases[p.StripeSessionID] = &stored
	return nil
}

func (m *mockPurchaseRepo) Complete(_ context.Context, sessionID string, completedAt time.Time) (bool, *model.Purchase, error) {
	p, ok := m.purchases[sessionID]
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

func (m *mockPurchaseRepo) GetBySessionID(_ context.Context, sessionID string) (*model.Purchase, error) {
	p, ok := m.purchases[sessionID]
	if !ok {
		return nil, apperror.NotFound("purchase", sessionID)
	}
	result := *p
	return &result, nil
}

// --- generator ---

type mockGenerator struct {
	outlines    []generator.OutlineSection
	deck        []byte
	pdf         []byte
	failOutline bool
	failDeck    bool
	failPDF     bool
	deckCalls   int
	pdfCalls    int
}

var _ generator.Generator = (*mockGenerator)(nil)

func newMockGenerator() *mockGenerator {
	return &mockGenerator{
		outlines: []generator.OutlineSection{
			{Title: "Intro", Content: []string{"point one", "point two"}},
			{Title: "Body", Content: []string{"point three"}},
		},
		deck: []byte("pptx-bytes"),
		pdf:  []byte("pdf-bytes"),
	}
}

func (m *mockGenerator) GenerateOutline(_ context.Context, prompt string, slideCount int, language string) ([]generator.OutlineSection, error) {
	if m.failOutline {
		return nil, apperror.Upstream("generation service", fmt.Errorf("mock outline failure"))
	}
	return m.outlines, nil
}

func (m *mockGenerator) GenerateDeck(_ context.Context, title string, outlines []model.SlideOutline, templateID, language string) ([]byte, error) {
	m.deckCalls++
	if m.failDeck {
		return nil, apperror.Upstream("generation service", fmt.Errorf("mock deck failure"))
	}
	return m.deck, nil
}

func (m *mockGenerator) ConvertToPDF(_ context.Context, fileURL string) ([]byte, error) {
	m.pdfCalls++
	if m.failPDF {
		return nil, apperror.Upstream("generation service", fmt.Errorf("mock pdf failure"))
	}
	return m.pdf, nil
}

// --- storage ---

type mockStorage struct {
	uploads    map[string][]byte
	fetchData  []byte
	failUpload bool
}

func newMockStorage() *mockStorage {
	return &mockStorage{uploads: make(map[string][]byte), fetchData: []byte("stored-bytes")}
}

func (m *mockStorage) Upload(_ context.Context, objectPath, contentType string, data []byte) (string, error) {
	if m.failUpload {
		return "", fmt.Errorf("mock: upload failed")
	}
	m.uploads[objectPath] = data
	return "https://storage.test/" + objectPath, nil
}

func (m *mockStorage) Fetch(_ context.Context, url string) ([]byte, error) {
	return m.fetchData, nil
}

// --- stripe ---

type mockStripe struct {
	sessionID  string
	sessionURL string
	event      *stripe.Event
	failCreate bool
	failVerify bool
}

var _ payments.StripeClient = (*mockStripe)(nil)

func newMockStripe() *mockStripe {
	return &mockStripe{
		sessionID:  "cs_test_123",
		sessionURL: "https://checkout.stripe.test/cs_test_123",
	}
}

func (m *mockStripe) CreateCheckoutSession(userID string, credits int, price decimal.Decimal) (*payments.CheckoutSession, error) {
	if m.failCreate {
		return nil, fmt.Errorf("mock: stripe unavailable")
	}
	return &payments.CheckoutSession{ID: m.sessionID, URL: m.sessionURL}, nil
}

func (m *mockStripe) VerifyEvent(payload []byte, signature string) (*stripe.Event, error) {
	if m.failVerify {
		return nil, fmt.Errorf("mock: bad signature")
	}
	return m.event, nil
}

// checkoutCompletedEvent builds the event a real webhook delivery carries.
func checkoutCompletedEvent(t *testing.T, sessionID, userID string, credits int) *stripe.Event {
	t.Helper()
	session := map[string]any{
		"id": sessionID,
		"metadata": map[string]string{
			"userId":  userID,
			"credits": fmt.Sprintf("%d", credits),
		},
	}
	raw, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

// --- oauth ---

type fakeOAuth struct {
	profile *auth.GoogleUser
	fail    bool
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*auth.GoogleUser, error) {
	if f.fail {
		return nil, fmt.Errorf("mock: exchange rejected")
	}
	return f.profile, nil
}
