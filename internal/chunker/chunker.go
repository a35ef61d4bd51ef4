// Package chunker splits raw text into overlapping fixed-size segments
// suitable for embedding and retrieval.
package chunker

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/edustack/doubtsolver/internal/model"
)

// Character targets derived from a ~400-token chunk at roughly four
// characters per token.
const (
	DefaultChunkSize = 1600
	DefaultOverlap   = 200
)

// Chunker produces ordered, overlapping chunks from a text body.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker. Out-of-range values fall back to defaults;
// overlap must stay strictly below chunk size or the split loop could
// stop making progress.
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 8
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split divides text into chunks of at most chunkSize characters with
// the configured overlap between consecutive chunks. Empty trimmed
// segments are dropped. Chunk IDs are unique per call. The final
// overlap-sized tail is never emitted as its own chunk: once the
// remainder fits inside the previous chunk's window the loop ends.
func (c *Chunker) Split(text string, meta model.ChunkMetadata) []model.Chunk {
	runes := []rune(norm.NFC.String(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []model.Chunk
	idx := 0
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		segment := strings.TrimSpace(string(runes[start:end]))
		if segment != "" {
			m := meta
			m.Index = idx
			m.Start = start
			m.End = end
			chunks = append(chunks, model.Chunk{
				ID:       uuid.NewString(),
				Text:     segment,
				Metadata: m,
			})
			idx++
		}

		// Remaining length <= overlap means the next window would only
		// re-emit text the current chunk already covers.
		if len(runes)-(end-c.overlap) <= c.overlap {
			break
		}
		start = end - c.overlap
	}

	return chunks
}
