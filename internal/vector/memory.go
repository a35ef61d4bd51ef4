package vector

import (
	"context"
	"sync"

	"github.com/coder/hnsw"
	"github.com/rotisserie/eris"
)

// Memory is an in-process Index backed by an HNSW graph. It serves the
// local profile and tests; payloads live in a side map keyed by the
// internal node key.
type Memory struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[uint64]
	dimension int

	idMap   map[string]uint64
	keyMap  map[uint64]string
	points  map[uint64]Point
	deleted map[uint64]bool
	nextKey uint64
}

// NewMemory creates an in-memory index with cosine distance.
func NewMemory(dimension int) *Memory {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &Memory{
		graph:     graph,
		dimension: dimension,
		idMap:     make(map[string]uint64),
		keyMap:    make(map[uint64]string),
		points:    make(map[uint64]Point),
		deleted:   make(map[uint64]bool),
	}
}

// Upsert inserts or replaces points by ID. Replacement is lazy: the old
// node stays in the graph but is masked from search results.
func (m *Memory) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range points {
		if m.dimension > 0 && len(p.Vector) != m.dimension {
			return eris.Errorf("vector: dimension mismatch: got %d, want %d", len(p.Vector), m.dimension)
		}
		if old, ok := m.idMap[p.ID]; ok {
			m.deleted[old] = true
		}
		key := m.nextKey
		m.nextKey++
		m.idMap[p.ID] = key
		m.keyMap[key] = p.ID
		m.points[key] = p
		m.graph.Add(hnsw.MakeNode(key, p.Vector))
	}
	return nil
}

// Search returns up to topK live points by descending cosine similarity.
func (m *Memory) Search(_ context.Context, vector []float32, topK int, filter *Filter) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.graph.Len() == 0 {
		return nil, nil
	}

	// Over-fetch to compensate for lazily deleted and filtered nodes.
	k := topK + len(m.deleted)
	if k > m.graph.Len() {
		k = m.graph.Len()
	}
	nodes := m.graph.Search(vector, k)

	results := make([]Result, 0, topK)
	for _, node := range nodes {
		if m.deleted[node.Key] {
			continue
		}
		p, ok := m.points[node.Key]
		if !ok {
			continue
		}
		if !filter.Matches(p.Payload.Metadata) {
			continue
		}
		score := 1 - float64(m.graph.Distance(vector, node.Value))
		results = append(results, Result{Chunk: p.Payload, Score: score})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// Delete masks points by ID.
func (m *Memory) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if key, ok := m.idMap[id]; ok {
			m.deleted[key] = true
			delete(m.idMap, id)
		}
	}
	return nil
}

// Count returns the number of live points.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.idMap), nil
}
