package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/model"
)

// Qdrant is a minimal REST client to a Qdrant collection. It assumes
// cosine distance and creates the collection on Init if missing.
type Qdrant struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

// NewQdrant creates a Qdrant-backed index client.
func NewQdrant(cfg config.VectorConfig) *Qdrant {
	return &Qdrant{
		baseURL:    cfg.URL,
		apiKey:     cfg.Key,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Init creates the collection if it does not exist.
func (q *Qdrant) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return eris.New("qdrant: invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collection), body, nil)
}

// Upsert writes points with chunk payloads, keyed by chunk ID.
func (q *Qdrant) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	qpoints := make([]map[string]any, len(points))
	for i, p := range points {
		qpoints[i] = map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				"text":       p.Payload.Text,
				"subject":    p.Payload.Metadata.Subject,
				"topic":      p.Payload.Metadata.Topic,
				"source":     p.Payload.Metadata.Source,
				"difficulty": p.Payload.Metadata.Difficulty,
				"index":      p.Payload.Metadata.Index,
				"start":      p.Payload.Metadata.Start,
				"end":        p.Payload.Metadata.End,
			},
		}
	}
	body := map[string]any{"points": qpoints}
	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collection)
	return q.do(ctx, http.MethodPut, path, body, nil)
}

// Search returns the topK most similar points, optionally narrowed by a
// single-field equality filter.
func (q *Qdrant) Search(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if filter != nil {
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": filter.Field, "match": map[string]any{"value": filter.Value}},
			},
		}
	}

	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", q.collection)
	if err := q.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := model.Chunk{ID: r.ID}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		if v, ok := r.Payload["subject"].(string); ok {
			chunk.Metadata.Subject = v
		}
		if v, ok := r.Payload["topic"].(string); ok {
			chunk.Metadata.Topic = v
		}
		if v, ok := r.Payload["source"].(string); ok {
			chunk.Metadata.Source = v
		}
		if v, ok := r.Payload["difficulty"].(string); ok {
			chunk.Metadata.Difficulty = v
		}
		if v, ok := r.Payload["index"].(float64); ok {
			chunk.Metadata.Index = int(v)
		}
		results = append(results, Result{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

// Delete removes points by ID.
func (q *Qdrant) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collection)
	return q.do(ctx, http.MethodPost, path, body, nil)
}

// Count returns the number of points in the collection.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", q.collection)
	if err := q.do(ctx, http.MethodPost, path, map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *Qdrant) do(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "qdrant: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return eris.Wrap(err, "qdrant: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "qdrant: %s %s", method, path)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return eris.Errorf("qdrant: %s %s returned %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return eris.Wrap(err, "qdrant: decode response")
		}
	}
	return nil
}
