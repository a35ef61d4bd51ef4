// Package vector provides the similarity index used for reference
// retrieval.
package vector

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/model"
)

// Point is one embedded chunk stored in the index.
type Point struct {
	ID      string
	Vector  []float32
	Payload model.Chunk
}

// Filter narrows a search by equality on a single metadata field.
// Supported fields: "subject", "difficulty".
type Filter struct {
	Field string
	Value string
}

// Result is one search hit, most similar first.
type Result struct {
	Chunk model.Chunk
	Score float64
}

// Index stores embedding vectors with chunk payloads. Upsert is
// idempotent by point ID.
type Index interface {
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Result, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

// NewFilter builds an equality filter from optional subject and
// difficulty values. At most one may be set; both empty yields nil.
func NewFilter(subject, difficulty string) (*Filter, error) {
	switch {
	case subject != "" && difficulty != "":
		return nil, eris.New("vector: filter supports a single field")
	case subject != "":
		return &Filter{Field: "subject", Value: subject}, nil
	case difficulty != "":
		return &Filter{Field: "difficulty", Value: difficulty}, nil
	default:
		return nil, nil
	}
}

// Initializer is implemented by index drivers that need one-time
// collection setup before points can be written or searched.
type Initializer interface {
	Init(ctx context.Context, dimension int) error
}

// Matches reports whether a chunk's metadata satisfies the filter.
func (f *Filter) Matches(meta model.ChunkMetadata) bool {
	if f == nil {
		return true
	}
	switch f.Field {
	case "subject":
		return meta.Subject == f.Value
	case "difficulty":
		return meta.Difficulty == f.Value
	default:
		return false
	}
}

// NewIndex creates an Index based on config.
func NewIndex(cfg config.VectorConfig, dimension int) (Index, error) {
	switch cfg.Driver {
	case "qdrant", "":
		return NewQdrant(cfg), nil
	case "memory":
		return NewMemory(dimension), nil
	default:
		return nil, eris.Errorf("vector: unknown driver %q", cfg.Driver)
	}
}
