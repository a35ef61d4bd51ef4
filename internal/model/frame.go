package model

import "time"

// FrameStatus represents the current state of a frame in the ingestion
// state machine. Valid transitions are queued → processing → completed
// or queued → processing → failed; both terminal.
type FrameStatus string

const (
	FrameStatusQueued     FrameStatus = "queued"
	FrameStatusProcessing FrameStatus = "processing"
	FrameStatusCompleted  FrameStatus = "completed"
	FrameStatusFailed     FrameStatus = "failed"
)

// FrameKind describes the source of a frame's visual content.
type FrameKind string

const (
	FrameKindImage        FrameKind = "image"
	FrameKindDocument     FrameKind = "document"
	FrameKindDocumentPage FrameKind = "document_page"
	FrameKindCrop         FrameKind = "crop"
)

// Difficulty is a coarse difficulty level derived by the concept tagger.
type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
	DifficultyUnknown Difficulty = "unknown"
)

// CropRect is a sub-region of a frame's image, in source pixel
// coordinates scaled by Scale.
type CropRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale,omitempty"`
}

// Frame is a unit of visual content tracked through the ingestion
// pipeline: a standalone image, one page of a document, or a crop of
// another frame.
type Frame struct {
	ID      string    `json:"id"`
	OwnerID string    `json:"owner_id"`
	Kind    FrameKind `json:"kind"`

	// Source asset locations.
	SourceURL string `json:"source_url"`
	CropURL   string `json:"crop_url,omitempty"`
	PublicID  string `json:"public_id,omitempty"`

	// Document page linking. ParentID groups all pages of one uploaded
	// document under the parent frame; a crop's ParentID references the
	// frame it was cut from.
	ParentID   string    `json:"parent_id,omitempty"`
	PageNumber int       `json:"page_number,omitempty"`
	Crop       *CropRect `json:"crop,omitempty"`

	// Extraction output.
	OCRText       string     `json:"ocr_text,omitempty"`
	OCRDetail     *OCRDetail `json:"ocr_detail,omitempty"`
	OCRConfidence float64    `json:"ocr_confidence,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	Difficulty    Difficulty `json:"difficulty,omitempty"`

	Status   FrameStatus `json:"status"`
	ErrorMsg string      `json:"error,omitempty"`

	FileSize    int64      `json:"file_size,omitempty"`
	Width       int        `json:"width,omitempty"`
	Height      int        `json:"height,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Terminal reports whether the frame has reached a terminal status.
func (f *Frame) Terminal() bool {
	return f.Status == FrameStatusCompleted || f.Status == FrameStatusFailed
}

// NormalizeConfidence rescales a raw confidence value to [0,1].
// Providers that report on a 0–100 scale are divided by 100; values are
// clamped so the stored confidence is always within range.
func NormalizeConfidence(v float64) float64 {
	if v > 1 {
		v = v / 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
