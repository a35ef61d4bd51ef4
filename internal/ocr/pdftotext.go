package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/model"
)

// pdfTextConfidence is assigned to non-empty poppler output. Embedded
// text layers are exact, but the tool reports no score of its own.
const pdfTextConfidence = 0.95

// PdfToText extracts text from local PDFs using the pdftotext CLI
// tool. It produces plain text only, with no word-level detail.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// Extract runs pdftotext -layout on the given PDF.
func (p *PdfToText) Extract(ctx context.Context, source string) (*model.OCRResult, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", source, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", source, stderr.String())
	}

	text := strings.TrimSpace(stdout.String())
	res := &model.OCRResult{Text: text}
	if text != "" {
		res.Confidence = pdfTextConfidence
	}
	return res, nil
}
