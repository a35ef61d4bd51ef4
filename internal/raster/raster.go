// Package raster renders PDF documents into page images for OCR.
package raster

import (
	"context"
	"time"
)

// Page is one rendered document page.
type Page struct {
	PageNumber int
	ImageBytes []byte
	Width      int
	Height     int
}

// Metadata is document-level information read without rendering.
type Metadata struct {
	PageCount    int
	Title        string
	Author       string
	CreationDate time.Time
}

// Rasterizer converts a PDF into page images and reads its metadata.
type Rasterizer interface {
	ConvertToImages(ctx context.Context, pdfPath string, dpi int) ([]Page, error)
	Metadata(ctx context.Context, pdfPath string) (*Metadata, error)
}
