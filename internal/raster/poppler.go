package raster

import (
	"bytes"
	"context"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/config"
)

// Poppler renders PDFs with the pdftoppm and pdfinfo CLI tools.
type Poppler struct {
	ppmPath  string
	infoPath string
	maxPages int
}

// NewPoppler creates a Poppler rasterizer. Empty binary paths default
// to the tool names on PATH.
func NewPoppler(cfg config.RasterConfig) *Poppler {
	ppm := cfg.PdfToPpmPath
	if ppm == "" {
		ppm = "pdftoppm"
	}
	info := cfg.PdfInfoPath
	if info == "" {
		info = "pdfinfo"
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}
	return &Poppler{ppmPath: ppm, infoPath: info, maxPages: maxPages}
}

// ConvertToImages runs pdftoppm and returns the rendered pages in
// ascending page order. Rendering stops at the configured page cap.
func (p *Poppler) ConvertToImages(ctx context.Context, pdfPath string, dpi int) ([]Page, error) {
	if dpi <= 0 {
		dpi = 150
	}

	tmpDir, err := os.MkdirTemp("", "raster-*")
	if err != nil {
		return nil, eris.Wrap(err, "raster: create temp dir")
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, p.ppmPath,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-l", strconv.Itoa(p.maxPages),
		pdfPath, prefix)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "raster: pdftoppm failed for %s: %s", pdfPath, stderr.String())
	}

	entries, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, eris.Wrap(err, "raster: glob rendered pages")
	}
	if len(entries) == 0 {
		return nil, eris.Errorf("raster: pdftoppm produced no pages for %s", pdfPath)
	}
	sort.Strings(entries)

	pages := make([]Page, 0, len(entries))
	for i, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "raster: read page image %s", path)
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, eris.Wrapf(err, "raster: decode page image %s", path)
		}
		pages = append(pages, Page{
			PageNumber: i + 1,
			ImageBytes: data,
			Width:      cfg.Width,
			Height:     cfg.Height,
		})
	}

	return pages, nil
}

// Metadata runs pdfinfo and parses its key-value output.
func (p *Poppler) Metadata(ctx context.Context, pdfPath string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, p.infoPath, pdfPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "raster: pdfinfo failed for %s: %s", pdfPath, stderr.String())
	}

	meta := parsePdfInfo(stdout.String())
	if meta.PageCount == 0 {
		return nil, eris.Errorf("raster: pdfinfo reported no pages for %s", pdfPath)
	}
	return meta, nil
}

func parsePdfInfo(out string) *Metadata {
	meta := &Metadata{}
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Pages":
			meta.PageCount, _ = strconv.Atoi(value)
		case "Title":
			meta.Title = value
		case "Author":
			meta.Author = value
		case "CreationDate":
			// pdfinfo prints e.g. "Mon Jan  2 15:04:05 2006 UTC"
			if t, err := time.Parse("Mon Jan _2 15:04:05 2006 MST", value); err == nil {
				meta.CreationDate = t
			}
		}
	}
	return meta
}
