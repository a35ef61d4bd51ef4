// Package ingest drives uploaded artifacts through the frame state
// machine: upload, rasterization for documents, OCR, concept tagging,
// and persistence. All processing is synchronous within the triggering
// request; there is no background queue and no automatic retry.
package ingest

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edustack/doubtsolver/internal/concepts"
	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/ocr"
	"github.com/edustack/doubtsolver/internal/raster"
	"github.com/edustack/doubtsolver/internal/storage"
	"github.com/edustack/doubtsolver/internal/store"
	"github.com/edustack/doubtsolver/internal/vector"
)

// Request describes one artifact to ingest.
type Request struct {
	OwnerID  string
	Kind     model.FrameKind
	Data     []byte
	Filename string
	// ParentID links a crop to the frame it was cut from.
	ParentID string
	Crop     *model.CropRect
}

// Region is the text extracted from a sub-rectangle of a frame.
type Region struct {
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// Orchestrator runs the ingestion pipeline.
type Orchestrator struct {
	store      store.Store
	uploader   storage.Uploader
	extractor  ocr.Extractor
	rasterizer raster.Rasterizer
	tagger     *concepts.Tagger
	index      vector.Index
	dpi        int
}

// New creates an Orchestrator. The vector index is optional; when set,
// deleting a frame also removes any points stored under the frame ids.
func New(st store.Store, uploader storage.Uploader, extractor ocr.Extractor, rasterizer raster.Rasterizer, tagger *concepts.Tagger, index vector.Index, dpi int) *Orchestrator {
	if dpi <= 0 {
		dpi = 150
	}
	return &Orchestrator{
		store:      st,
		uploader:   uploader,
		extractor:  extractor,
		rasterizer: rasterizer,
		tagger:     tagger,
		index:      index,
		dpi:        dpi,
	}
}

// Ingest uploads the artifact, persists a queued frame, and runs it
// through processing. Processing failures are captured on the frame,
// not returned as errors; the caller inspects the frame status.
func (o *Orchestrator) Ingest(ctx context.Context, req Request) (*model.Frame, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	switch req.Kind {
	case model.FrameKindDocument:
		return o.ingestDocument(ctx, req)
	default:
		return o.ingestSingle(ctx, req)
	}
}

func validate(req Request) error {
	if req.OwnerID == "" {
		return eris.New("ingest: owner id is required")
	}
	if len(req.Data) == 0 {
		return eris.New("ingest: artifact data is empty")
	}
	switch req.Kind {
	case model.FrameKindImage, model.FrameKindDocument:
	case model.FrameKindCrop:
		if req.ParentID == "" {
			return eris.New("ingest: crop requires a parent frame")
		}
		if req.Crop != nil && (req.Crop.Width <= 0 || req.Crop.Height <= 0) {
			return eris.New("ingest: crop rectangle must have positive size")
		}
	default:
		return eris.Errorf("ingest: unsupported kind %q", req.Kind)
	}
	return nil
}

// ingestSingle handles image and crop artifacts: one frame, one OCR
// pass.
func (o *Orchestrator) ingestSingle(ctx context.Context, req Request) (*model.Frame, error) {
	asset, err := o.uploader.Upload(ctx, req.Data, storage.UploadOptions{
		ResourceType: "image",
		Filename:     req.Filename,
	})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: upload artifact")
	}

	frame := &model.Frame{
		ID:        uuid.New().String(),
		OwnerID:   req.OwnerID,
		Kind:      req.Kind,
		SourceURL: asset.URL,
		PublicID:  asset.PublicID,
		ParentID:  req.ParentID,
		Crop:      req.Crop,
		Status:    model.FrameStatusQueued,
		FileSize:  asset.Bytes,
		Width:     asset.Width,
		Height:    asset.Height,
		CreatedAt: time.Now().UTC(),
	}
	if req.Kind == model.FrameKindCrop {
		frame.CropURL = asset.URL
	}
	if err := o.store.CreateFrame(ctx, frame); err != nil {
		return nil, err
	}

	if err := o.process(ctx, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// process runs one frame through processing → {completed, failed} and
// persists every transition. Only store failures are returned.
func (o *Orchestrator) process(ctx context.Context, frame *model.Frame) error {
	frame.Status = model.FrameStatusProcessing
	if err := o.store.UpdateFrame(ctx, frame); err != nil {
		return err
	}

	res, err := o.extractor.Extract(ctx, frame.SourceURL)
	now := time.Now().UTC()
	frame.ProcessedAt = &now
	if err != nil {
		zap.L().Warn("ingest: ocr failed",
			zap.String("frame_id", frame.ID),
			zap.Error(err))
		frame.Status = model.FrameStatusFailed
		frame.ErrorMsg = err.Error()
		return o.store.UpdateFrame(ctx, frame)
	}

	frame.OCRText = res.Text
	frame.OCRDetail = res.Detail
	frame.OCRConfidence = model.NormalizeConfidence(res.Confidence)
	o.applyConcepts(frame)
	frame.Status = model.FrameStatusCompleted
	return o.store.UpdateFrame(ctx, frame)
}

// applyConcepts tags the frame from its OCR text. Tagging is
// best-effort; a frame without a tagger or without text gets empty tags
// and difficulty "unknown".
func (o *Orchestrator) applyConcepts(frame *model.Frame) {
	frame.Tags = []string{}
	frame.Difficulty = model.DifficultyUnknown
	if o.tagger == nil || strings.TrimSpace(frame.OCRText) == "" {
		return
	}
	frame.Tags, frame.Difficulty = o.tagger.Tag(frame.OCRText)
	if frame.Tags == nil {
		frame.Tags = []string{}
	}
}

// ingestDocument fans a PDF out into one parent frame plus one frame
// per rendered page. Pages run sequentially in page order; a page
// failure is recorded on that page without aborting its siblings. The
// parent completes once every page has been attempted.
func (o *Orchestrator) ingestDocument(ctx context.Context, req Request) (*model.Frame, error) {
	asset, err := o.uploader.Upload(ctx, req.Data, storage.UploadOptions{
		ResourceType: "raw",
		Filename:     req.Filename,
	})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: upload document")
	}

	parent := &model.Frame{
		ID:        uuid.New().String(),
		OwnerID:   req.OwnerID,
		Kind:      model.FrameKindDocument,
		SourceURL: asset.URL,
		PublicID:  asset.PublicID,
		Status:    model.FrameStatusQueued,
		FileSize:  asset.Bytes,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.CreateFrame(ctx, parent); err != nil {
		return nil, err
	}

	parent.Status = model.FrameStatusProcessing
	if err := o.store.UpdateFrame(ctx, parent); err != nil {
		return nil, err
	}

	pages, err := o.rasterize(ctx, req.Data)
	now := time.Now().UTC()
	if err != nil {
		zap.L().Warn("ingest: rasterization failed",
			zap.String("frame_id", parent.ID),
			zap.Error(err))
		parent.Status = model.FrameStatusFailed
		parent.ErrorMsg = err.Error()
		parent.ProcessedAt = &now
		if uerr := o.store.UpdateFrame(ctx, parent); uerr != nil {
			return nil, uerr
		}
		return parent, nil
	}

	var texts []string
	var confSum float64
	var confCount int
	for _, page := range pages {
		pageFrame, err := o.ingestPage(ctx, req.OwnerID, parent.ID, page)
		if err != nil {
			return nil, err
		}
		if pageFrame.Status == model.FrameStatusCompleted && pageFrame.OCRText != "" {
			texts = append(texts, pageFrame.OCRText)
			confSum += pageFrame.OCRConfidence
			confCount++
		}
	}

	parent.OCRText = strings.Join(texts, "\n\n")
	if confCount > 0 {
		parent.OCRConfidence = confSum / float64(confCount)
	}
	o.applyConcepts(parent)
	parent.Status = model.FrameStatusCompleted
	done := time.Now().UTC()
	parent.ProcessedAt = &done
	if err := o.store.UpdateFrame(ctx, parent); err != nil {
		return nil, err
	}
	return parent, nil
}

// rasterize writes the document to a temp file for the CLI-based
// rasterizer.
func (o *Orchestrator) rasterize(ctx context.Context, data []byte) ([]raster.Page, error) {
	tmp, err := os.CreateTemp("", "ingest-*.pdf")
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create temp pdf")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, eris.Wrap(err, "ingest: write temp pdf")
	}
	if err := tmp.Close(); err != nil {
		return nil, eris.Wrap(err, "ingest: close temp pdf")
	}

	if meta, err := o.rasterizer.Metadata(ctx, tmp.Name()); err != nil {
		zap.L().Warn("ingest: document metadata unavailable", zap.Error(err))
	} else {
		zap.L().Info("ingest: rasterizing document",
			zap.Int("page_count", meta.PageCount),
			zap.String("title", meta.Title),
		)
	}

	return o.rasterizer.ConvertToImages(ctx, tmp.Name(), o.dpi)
}

// ingestPage uploads one rendered page and runs it through processing.
// An upload failure is recorded on a failed page frame so the parent
// fan-out can continue.
func (o *Orchestrator) ingestPage(ctx context.Context, ownerID, parentID string, page raster.Page) (*model.Frame, error) {
	frame := &model.Frame{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Kind:       model.FrameKindDocumentPage,
		ParentID:   parentID,
		PageNumber: page.PageNumber,
		Status:     model.FrameStatusQueued,
		Width:      page.Width,
		Height:     page.Height,
		CreatedAt:  time.Now().UTC(),
	}

	asset, err := o.uploader.Upload(ctx, page.ImageBytes, storage.UploadOptions{ResourceType: "image"})
	if err != nil {
		zap.L().Warn("ingest: page upload failed",
			zap.String("parent_id", parentID),
			zap.Int("page", page.PageNumber),
			zap.Error(err))
		now := time.Now().UTC()
		frame.Status = model.FrameStatusFailed
		frame.ErrorMsg = err.Error()
		frame.ProcessedAt = &now
		if cerr := o.store.CreateFrame(ctx, frame); cerr != nil {
			return nil, cerr
		}
		return frame, nil
	}

	frame.SourceURL = asset.URL
	frame.PublicID = asset.PublicID
	frame.FileSize = asset.Bytes
	if err := o.store.CreateFrame(ctx, frame); err != nil {
		return nil, err
	}
	if err := o.process(ctx, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// ExtractRegion returns the text inside a sub-rectangle of a frame.
// When the frame carries no word detail, OCR runs on demand first so
// region extraction is always backed by live bounding boxes.
func (o *Orchestrator) ExtractRegion(ctx context.Context, frameID string, rect model.CropRect) (*Region, error) {
	if rect.Width <= 0 || rect.Height <= 0 {
		return nil, eris.New("ingest: region rectangle must have positive size")
	}
	if rect.X < 0 || rect.Y < 0 {
		return nil, eris.New("ingest: region rectangle out of bounds")
	}

	frame, err := o.store.GetFrame(ctx, frameID)
	if err != nil {
		return nil, err
	}

	if frame.OCRDetail == nil || len(frame.OCRDetail.Words) == 0 {
		res, err := o.extractor.Extract(ctx, frame.SourceURL)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: on-demand ocr for frame %s", frameID)
		}
		frame.OCRText = res.Text
		frame.OCRDetail = res.Detail
		frame.OCRConfidence = model.NormalizeConfidence(res.Confidence)
		if err := o.store.UpdateFrame(ctx, frame); err != nil {
			return nil, err
		}
	}

	region := &Region{}
	if frame.OCRDetail == nil {
		return region, nil
	}
	var words []string
	for _, w := range frame.OCRDetail.Words {
		if w.Box.Intersects(rect) {
			words = append(words, w.Text)
		}
	}
	region.Text = strings.Join(words, " ")
	region.WordCount = len(words)
	return region, nil
}

// Delete removes a frame and all child frames referencing it, then
// cleans up hosted assets and index points best-effort.
func (o *Orchestrator) Delete(ctx context.Context, frameID string) (int, error) {
	frame, err := o.store.GetFrame(ctx, frameID)
	if err != nil {
		return 0, err
	}

	children, err := o.store.ListFrames(ctx, store.FrameFilter{ParentID: frameID})
	if err != nil {
		return 0, err
	}

	n, err := o.store.DeleteFrame(ctx, frameID)
	if err != nil {
		return 0, err
	}

	// Asset and index cleanup is best-effort; the records are already
	// gone.
	ids := []string{frame.ID}
	o.deleteAsset(ctx, frame.PublicID)
	for _, child := range children {
		ids = append(ids, child.ID)
		o.deleteAsset(ctx, child.PublicID)
	}
	if o.index != nil {
		if err := o.index.Delete(ctx, ids); err != nil {
			zap.L().Warn("ingest: delete index points failed",
				zap.String("frame_id", frameID),
				zap.Error(err))
		}
	}
	return n, nil
}

func (o *Orchestrator) deleteAsset(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	if err := o.uploader.Delete(ctx, publicID); err != nil {
		zap.L().Warn("ingest: delete asset failed",
			zap.String("public_id", publicID),
			zap.Error(err))
	}
}
