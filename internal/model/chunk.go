package model

// ChunkMetadata describes where a chunk came from. It is stored as the
// vector payload alongside the embedding so retrieval can filter and
// attribute results.
type ChunkMetadata struct {
	Subject    string `json:"subject,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Source     string `json:"source,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Index      int    `json:"index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// Chunk is a bounded text segment prepared for embedding. Chunks are
// immutable once embedded; the vector is stored keyed by ID.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}
