package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/slidex/slidex/internal/apperror"
	"github.com/slidex/slidex/internal/model"
)

// requestTimeout bounds every call to the generation service. Rendering a
// full deck routinely takes over a minute, so the cap is generous.
const requestTimeout = 2 * time.Minute

// Client talks to the slide generation service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Compile-time check that Client implements the Generator interface.
var _ Generator = (*Client)(nil)

// NewClient creates a generation service client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		// The per-request context carries the timeout; the http.Client
		// itself stays unbounded so the two never disagree.
		http:   &http.Client{},
		logger: logger,
	}
}

// outlineRequest matches the generation service's outline endpoint.
type outlineRequest struct {
	Prompt     string `json:"prompt"`
	SlideCount int    `json:"slideCount"`
	Language   string `json:"language"`
}

type outlineResponse struct {
	Outlines []OutlineSection `json:"outlines"`
}

// GenerateOutline asks the service for a structured outline.
func (c *Client) GenerateOutline(ctx context.Context, prompt string, slideCount int, language string) ([]OutlineSection, error) {
	body, err := c.postJSON(ctx, "/generate_outline", outlineRequest{
		Prompt:     prompt,
		SlideCount: slideCount,
		Language:   language,
	})
	if err != nil {
		return nil, err
	}

	var resp outlineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperror.Upstream("generation service", fmt.Errorf("decode outline response: %w", err))
	}
	if len(resp.Outlines) == 0 {
		return nil, apperror.Upstream("generation service", fmt.Errorf("empty outline response"))
	}
	return resp.Outlines, nil
}

// deckRequest matches the generation service's templated render endpoint.
type deckRequest struct {
	Title      string               `json:"title"`
	Outlines   []model.SlideOutline `json:"outlines"`
	TemplateID string               `json:"templateId"`
	Language   string               `json:"language"`
}

// GenerateDeck renders the outlines into a PPTX file. The response body is
// the raw file, not JSON.
func (c *Client) GenerateDeck(ctx context.Context, title string, outlines []model.SlideOutline, templateID, language string) ([]byte, error) {
	return c.postJSON(ctx, "/generate_slide_with_template", deckRequest{
		Title:      title,
		Outlines:   outlines,
		TemplateID: templateID,
		Language:   language,
	})
}

type convertRequest struct {
	FileURL string `json:"file_url"`
}

// ConvertToPDF has the service fetch the deck at fileURL and return a PDF.
func (c *Client) ConvertToPDF(ctx context.Context, fileURL string) ([]byte, error) {
	return c.postJSON(ctx, "/convert_to_pdf", convertRequest{FileURL: fileURL})
}

// postJSON sends a JSON POST to the service and returns the raw response
// body. Any transport error or non-200 status maps to an upstream error.
func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("generation service request failed",
			slog.String("path", path),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, apperror.Upstream("generation service", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Upstream("generation service", fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("generation service request complete",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Upstream("generation service",
			fmt.Errorf("%s returned status %d", path, resp.StatusCode))
	}
	return body, nil
}
