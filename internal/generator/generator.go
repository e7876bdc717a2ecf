package generator

import (
	"context"

	"github.com/slidex/slidex/internal/model"
)

// OutlineSection is one slide's worth of generated outline content.
type OutlineSection struct {
	Title   string   `json:"title"`
	Content []string `json:"content"`
}

// Generator represents the interface to the slide generation service.
type Generator interface {
	// GenerateOutline produces slideCount outline sections for the prompt.
	GenerateOutline(ctx context.Context, prompt string, slideCount int, language string) ([]OutlineSection, error)
	// GenerateDeck renders the outlines into a PPTX file using the given template.
	GenerateDeck(ctx context.Context, title string, outlines []model.SlideOutline, templateID, language string) ([]byte, error)
	// ConvertToPDF downloads the deck at fileURL and converts it to PDF.
	ConvertToPDF(ctx context.Context, fileURL string) ([]byte, error)
}
