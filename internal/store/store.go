// Package store persists frames and answer records. Records are kept
// as JSON documents with the filterable fields mirrored into columns;
// the document is authoritative and rewritten on every update.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/model"
)

// FrameFilter specifies criteria for listing frames.
type FrameFilter struct {
	OwnerID  string            `json:"owner_id,omitempty"`
	Kind     model.FrameKind   `json:"kind,omitempty"`
	Status   model.FrameStatus `json:"status,omitempty"`
	ParentID string            `json:"parent_id,omitempty"`
	Limit    int               `json:"limit,omitempty"`
	Offset   int               `json:"offset,omitempty"`
}

// DoubtFilter specifies criteria for listing answer records.
type DoubtFilter struct {
	OwnerID    string            `json:"owner_id,omitempty"`
	Status     model.DoubtStatus `json:"status,omitempty"`
	Bookmarked *bool             `json:"bookmarked,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Offset     int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the doubt pipeline.
type Store interface {
	// Frames
	CreateFrame(ctx context.Context, frame *model.Frame) error
	GetFrame(ctx context.Context, id string) (*model.Frame, error)
	UpdateFrame(ctx context.Context, frame *model.Frame) error
	ListFrames(ctx context.Context, filter FrameFilter) ([]model.Frame, error)
	// DeleteFrame removes the frame and every child frame referencing
	// it as parent. Returns the number of records removed.
	DeleteFrame(ctx context.Context, id string) (int, error)

	// Doubts
	CreateDoubt(ctx context.Context, doubt *model.Doubt) error
	GetDoubt(ctx context.Context, id string) (*model.Doubt, error)
	UpdateDoubt(ctx context.Context, doubt *model.Doubt) error
	ListDoubts(ctx context.Context, filter DoubtFilter) ([]model.Doubt, error)
	DeleteDoubt(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// New creates a Store based on the configured driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres", "":
		return NewPostgres(ctx, cfg)
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
