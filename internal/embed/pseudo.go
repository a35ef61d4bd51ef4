package embed

import (
	"context"
	"math"
)

// PseudoDimension is the fixed vector length of the pseudo provider.
const PseudoDimension = 256

// Pseudo produces a deterministic character-code-based embedding. It is
// a degraded substitute used when no real provider is configured or the
// real provider is unavailable — stable for identical input, but it
// carries no semantic signal and must not be treated as a production
// embedding.
type Pseudo struct {
	dimension int
}

// NewPseudo creates a pseudo embedder of the given dimension
// (PseudoDimension when dim <= 0).
func NewPseudo(dim int) *Pseudo {
	if dim <= 0 {
		dim = PseudoDimension
	}
	return &Pseudo{dimension: dim}
}

// Dimension returns the fixed vector length.
func (p *Pseudo) Dimension() int {
	return p.dimension
}

// Embed folds character codes into a fixed-size vector and L2
// normalizes it. Identical input always yields an identical vector.
func (p *Pseudo) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimension)
	for i, r := range text {
		idx := i % p.dimension
		vec[idx] += float32(r%97) / 97
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		norm := float32(math.Sqrt(sum))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
