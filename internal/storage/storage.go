// Package storage uploads generated presentation files to an object store
// and serves them back for download.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Storage represents the object store holding generated presentation files.
type Storage interface {
	// Upload stores data at objectPath and returns the public URL.
	Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
	// Fetch downloads the object at the given public URL.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SupabaseStorage implements Storage against the Supabase storage REST API.
type SupabaseStorage struct {
	baseURL    string
	serviceKey string
	bucket     string
	http       *http.Client
	logger     *slog.Logger
}

var _ Storage = (*SupabaseStorage)(nil)

// NewSupabase creates a storage client for the given project URL, service
// role key and bucket.
func NewSupabase(baseURL, serviceKey, bucket string, logger *slog.Logger) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		bucket:     bucket,
		http:       &http.Client{},
		logger:     logger,
	}
}

// Upload PUTs the object and returns its public URL. Uploads use upsert
// semantics so a retried request for the same path does not fail.
func (s *SupabaseStorage) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload %s: status %d: %s", objectPath, resp.StatusCode, body)
	}

	s.logger.Debug("object uploaded",
		slog.String("bucket", s.bucket),
		slog.String("path", objectPath),
		slog.Int("bytes", len(data)))

	return s.PublicURL(objectPath), nil
}

// PublicURL returns the unauthenticated download URL for an object. The
// bucket must have public read access.
func (s *SupabaseStorage) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath)
}

// Fetch downloads an object from its public URL.
func (s *SupabaseStorage) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
