// Package ocr extracts text and word-level layout from uploaded
// artifacts. Providers differ in capability: the HTTP vision provider
// returns word and line detail with bounding boxes, the local poppler
// provider returns plain text only.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/model"
)

// Extractor extracts text from an image or PDF, addressed by URL or
// local path. All confidences on the result are normalized to [0,1].
type Extractor interface {
	Extract(ctx context.Context, source string) (*model.OCRResult, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "http", "":
		if cfg.Key == "" {
			return nil, eris.New("ocr: http provider requires key")
		}
		return NewVision(cfg.BaseURL, cfg.Key), nil
	case "local":
		return NewPdfToText(cfg.PdfToTextPath), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
