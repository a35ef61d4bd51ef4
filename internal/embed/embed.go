// Package embed maps text to fixed-dimension vectors for indexing and
// retrieval.
package embed

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/config"
)

// Provider maps text to a fixed-dimension embedding vector. The same
// provider must be used for documents and queries.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// NewProvider creates a Provider based on config.
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		if cfg.Key == "" {
			return nil, eris.New("embed: openai provider requires key")
		}
		return NewOpenAI(cfg), nil
	case "pseudo":
		return NewPseudo(cfg.Dimension), nil
	default:
		return nil, eris.Errorf("embed: unknown provider %q", cfg.Provider)
	}
}
