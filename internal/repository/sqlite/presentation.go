package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/slidex/slidex/internal/apperror"
	"github.com/slidex/slidex/internal/model"
	"github.com/slidex/slidex/internal/repository"
)

// PresentationRepo persists generation job records.
type PresentationRepo struct {
	conn *sql.DB
}

// compile-time check that *PresentationRepo implements repository.PresentationRepository
var _ repository.PresentationRepository = (*PresentationRepo)(nil)

// Create inserts a new presentation record in the processing state.
// The credit debit is the caller's responsibility and happens first — a
// record only exists once its credit has been paid.
func (r *PresentationRepo) Create(ctx context.Context, p *model.Presentation) error {
	p.ID = xid.New().String()
	p.Status = model.StatusProcessing
	p.CreatedAt = time.Now()

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO presentations (id, user_id, title, prompt, slide_count, template, content, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.UserID,
		p.Title,
		p.Prompt,
		p.SlideCount,
		p.Template,
		p.Content,
		p.Status,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting presentation for user %s: %w", p.UserID, err)
	}

	return nil
}

// GetByID retrieves a presentation, but only if it belongs to userID.
//
// OWNERSHIP IN THE QUERY:
// The user_id predicate is part of the lookup itself, so a valid record id
// requested by the wrong account is indistinguishable from a missing record.
// That is deliberate — it never leaks that the id exists.
func (r *PresentationRepo) GetByID(ctx context.Context, id, userID string) (*model.Presentation, error) {
	var p model.Presentation

	err := r.conn.QueryRowContext(ctx,
		`SELECT id, user_id, title, prompt, slide_count, template, content, status,
		        file_url, storage_path, pdf_file_url, pdf_storage_path, created_at
		 FROM presentations WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(
		&p.ID,
		&p.UserID,
		&p.Title,
		&p.Prompt,
		&p.SlideCount,
		&p.Template,
		&p.Content,
		&p.Status,
		&p.FileURL,
		&p.StoragePath,
		&p.PDFFileURL,
		&p.PDFStoragePath,
		&p.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("presentation", id)
		}
		return nil, fmt.Errorf("sqlite: getting presentation %s: %w", id, err)
	}

	return &p, nil
}

// ListByUser returns the account's presentations, newest first.
func (r *PresentationRepo) ListByUser(ctx context.Context, userID string) ([]model.Presentation, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, user_id, title, prompt, slide_count, template, content, status,
		        file_url, storage_path, pdf_file_url, pdf_storage_path, created_at
		 FROM presentations WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing presentations for %s: %w", userID, err)
	}
	defer rows.Close()

	// Empty slice, not nil — the JSON encoder then emits [] instead of null.
	presentations := []model.Presentation{}
	for rows.Next() {
		var p model.Presentation
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.Title,
			&p.Prompt,
			&p.SlideCount,
			&p.Template,
			&p.Content,
			&p.Status,
			&p.FileURL,
			&p.StoragePath,
			&p.PDFFileURL,
			&p.PDFStoragePath,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning presentation row: %w", err)
		}
		presentations = append(presentations, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating presentation rows: %w", err)
	}

	return presentations, nil
}

// MarkCompleted transitions processing → completed and records where the
// generated deck landed.
//
// The status guard in the WHERE clause makes the transition monotonic: a
// record that is already completed or failed affects zero rows, and the
// caller gets ErrInvalidTransition instead of a silent overwrite.
func (r *PresentationRepo) MarkCompleted(ctx context.Context, id, fileURL, storagePath string) error {
	return r.transition(ctx, id, model.StatusCompleted,
		`UPDATE presentations SET status = ?, file_url = ?, storage_path = ?
		 WHERE id = ? AND status = 'processing'`,
		model.StatusCompleted, fileURL, storagePath, id,
	)
}

// MarkFailed transitions processing → failed. The debited credit is NOT
// refunded here or anywhere else — failed generations stay paid for.
func (r *PresentationRepo) MarkFailed(ctx context.Context, id string) error {
	return r.transition(ctx, id, model.StatusFailed,
		`UPDATE presentations SET status = ? WHERE id = ? AND status = 'processing'`,
		model.StatusFailed, id,
	)
}

func (r *PresentationRepo) transition(ctx context.Context, id string, to model.PresentationStatus, query string, args ...any) error {
	res, err := r.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: transitioning presentation %s to %s: %w", id, to, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: transition rows affected: %w", err)
	}
	if affected == 0 {
		// Either the record doesn't exist or it already left processing.
		var status string
		err := r.conn.QueryRowContext(ctx,
			`SELECT status FROM presentations WHERE id = ?`, id,
		).Scan(&status)
		if err == sql.ErrNoRows {
			return apperror.NotFound("presentation", id)
		}
		if err != nil {
			return fmt.Errorf("sqlite: checking presentation %s status: %w", id, err)
		}
		return apperror.InvalidTransition("presentation", id, string(to))
	}

	return nil
}

// AttachPDF records the derived PDF artifact at most once per presentation.
//
// The pdf_file_url = '' guard means only the first conversion wins; any
// later call reads back whatever URL is already stored and returns that.
// Repeated export requests therefore reuse the first conversion instead of
// paying for another one.
func (r *PresentationRepo) AttachPDF(ctx context.Context, id, pdfURL, pdfStoragePath string) (string, error) {
	res, err := r.conn.ExecContext(ctx,
		`UPDATE presentations SET pdf_file_url = ?, pdf_storage_path = ?
		 WHERE id = ? AND pdf_file_url = ''`,
		pdfURL, pdfStoragePath, id,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: attaching pdf to presentation %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("sqlite: attach pdf rows affected: %w", err)
	}
	if affected > 0 {
		return pdfURL, nil
	}

	var existing string
	err = r.conn.QueryRowContext(ctx,
		`SELECT pdf_file_url FROM presentations WHERE id = ?`, id,
	).Scan(&existing)
	if err == sql.ErrNoRows {
		return "", apperror.NotFound("presentation", id)
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: reading existing pdf url for %s: %w", id, err)
	}

	return existing, nil
}
