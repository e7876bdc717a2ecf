package model

import "time"

// PresentationStatus is the lifecycle state of a generation job.
//
// The status is forward-only:
//
//	processing → completed
//	processing → failed
//
// There is no reverse transition. The repository enforces this with guarded
// UPDATE statements — a record that has already reached a terminal state
// cannot be moved again, even by a concurrent request.
type PresentationStatus string

const (
	StatusProcessing PresentationStatus = "processing"
	StatusCompleted  PresentationStatus = "completed"
	StatusFailed     PresentationStatus = "failed"
)

// Presentation is a single slide-deck generation request and its record.
//
// FileURL/StoragePath point at the generated .pptx artifact and are only set
// when the record transitions to completed. PDFFileURL/PDFStoragePath are
// filled in lazily the first time the user asks for a PDF export — that
// derivation happens at most once per presentation.
type Presentation struct {
	ID             string             `json:"id"           db:"id"`
	UserID         string             `json:"-"            db:"user_id"`
	Title          string             `json:"title"        db:"title"`
	Prompt         string             `json:"prompt"       db:"prompt"`
	SlideCount     int                `json:"slide_count"  db:"slide_count"`
	Template       string             `json:"template"     db:"template"`
	Content        string             `json:"content"      db:"content"` // outline JSON as submitted
	Status         PresentationStatus `json:"status"       db:"status"`
	FileURL        string             `json:"file_url"     db:"file_url"`
	StoragePath    string             `json:"-"            db:"storage_path"`
	PDFFileURL     string             `json:"pdf_file_url" db:"pdf_file_url"`
	PDFStoragePath string             `json:"-"            db:"pdf_storage_path"`
	CreatedAt      time.Time          `json:"created_at"   db:"created_at"`
}

// SlideOutline is one slide's worth of outline: a title plus bullet points.
// The frontend edits these between the outline step and the final generate
// call, so they round-trip through the create request as-is.
type SlideOutline struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content []string `json:"content"`
}
