// Package retriever turns a question into ranked reference context by
// embedding it and searching the vector index.
package retriever

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/edustack/doubtsolver/internal/embed"
	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/vector"
)

const (
	// DefaultTopK is the number of snippets returned when unspecified.
	DefaultTopK = 5
	// DefaultScoreFloor drops weakly similar results.
	DefaultScoreFloor = 0.5
)

// Options narrows a retrieval call.
type Options struct {
	TopK   int
	Filter *vector.Filter
}

// Retriever embeds queries and searches the vector index. Retrieval is
// best-effort: collaborator failures yield an empty result set, never
// an error — answering must proceed with zero context.
type Retriever struct {
	provider embed.Provider
	index    vector.Index
	topK     int
	floor    float64
}

// New creates a Retriever. Non-positive topK/floor fall back to defaults.
func New(provider embed.Provider, index vector.Index, topK int, floor float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if floor <= 0 {
		floor = DefaultScoreFloor
	}
	return &Retriever{provider: provider, index: index, topK: topK, floor: floor}
}

// Retrieve returns up to opts.TopK context snippets with score >= the
// floor, most similar first.
func (r *Retriever) Retrieve(ctx context.Context, question string, opts Options) []model.ContextSnippet {
	topK := opts.TopK
	if topK <= 0 {
		topK = r.topK
	}

	vec, err := r.provider.Embed(ctx, question)
	if err != nil {
		zap.L().Warn("retriever: embedding failed, continuing without context", zap.Error(err))
		return nil
	}

	results, err := r.index.Search(ctx, vec, topK, opts.Filter)
	if err != nil {
		zap.L().Warn("retriever: search failed, continuing without context", zap.Error(err))
		return nil
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	snippets := make([]model.ContextSnippet, 0, len(results))
	for _, res := range results {
		if res.Score < r.floor {
			continue
		}
		snippets = append(snippets, model.ContextSnippet{
			Text:     res.Chunk.Text,
			Score:    res.Score,
			Metadata: res.Chunk.Metadata,
		})
		if len(snippets) == topK {
			break
		}
	}
	return snippets
}

// Stats summarizes a result set for observability.
type Stats struct {
	Count    int
	AvgScore float64
	MinScore float64
	MaxScore float64
}

// Summarize computes aggregate statistics over a result set. Pure.
func Summarize(snippets []model.ContextSnippet) Stats {
	if len(snippets) == 0 {
		return Stats{}
	}
	s := Stats{
		Count:    len(snippets),
		MinScore: snippets[0].Score,
		MaxScore: snippets[0].Score,
	}
	var sum float64
	for _, sn := range snippets {
		sum += sn.Score
		if sn.Score < s.MinScore {
			s.MinScore = sn.Score
		}
		if sn.Score > s.MaxScore {
			s.MaxScore = sn.Score
		}
	}
	s.AvgScore = sum / float64(len(snippets))
	return s
}
