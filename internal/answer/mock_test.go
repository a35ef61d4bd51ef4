package answer

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/genai"
	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/store"
	"github.com/edustack/doubtsolver/internal/vector"
)

// stubProvider returns a fixed embedding.
type stubProvider struct {
	fail bool
}

func (p *stubProvider) Embed(context.Context, string) ([]float32, error) {
	if p.fail {
		return nil, eris.New("embed down")
	}
	return []float32{1, 0, 0}, nil
}

func (p *stubProvider) Dimension() int { return 3 }

// stubIndex returns canned search results.
type stubIndex struct {
	results []vector.Result
}

func (i *stubIndex) Upsert(context.Context, []vector.Point) error { return nil }

func (i *stubIndex) Search(context.Context, []float32, int, *vector.Filter) ([]vector.Result, error) {
	return i.results, nil
}

func (i *stubIndex) Delete(context.Context, []string) error { return nil }
func (i *stubIndex) Count(context.Context) (int, error)     { return len(i.results), nil }

// stubBackend returns a configured answer or error.
type stubBackend struct {
	answer  *genai.Answer
	askErr  error
	raw     string
	rawErr  error
	askedQ  string
	askedCx []model.ContextSnippet
	priorQ  string
	priorA  string
}

func (b *stubBackend) AskWithContext(_ context.Context, question string, cx []model.ContextSnippet) (*genai.Answer, error) {
	b.askedQ = question
	b.askedCx = cx
	if b.askErr != nil {
		return nil, b.askErr
	}
	return b.answer, nil
}

func (b *stubBackend) AskFollowUp(_ context.Context, question, priorQuestion, priorAnswer string) (*genai.Answer, error) {
	b.askedQ = question
	b.priorQ = priorQuestion
	b.priorA = priorAnswer
	if b.askErr != nil {
		return nil, b.askErr
	}
	return b.answer, nil
}

func (b *stubBackend) AskRaw(context.Context, string) (string, error) {
	return b.raw, b.rawErr
}

func (b *stubBackend) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// memStore is an in-memory Store for doubts and frames.
type memStore struct {
	doubts     map[string]model.Doubt
	frames     map[string]model.Frame
	failCreate bool
	failUpdate bool
	created    []model.Doubt
}

func newMemStore() *memStore {
	return &memStore{doubts: map[string]model.Doubt{}, frames: map[string]model.Frame{}}
}

func (m *memStore) CreateFrame(_ context.Context, f *model.Frame) error {
	m.frames[f.ID] = *f
	return nil
}

func (m *memStore) GetFrame(_ context.Context, id string) (*model.Frame, error) {
	f, ok := m.frames[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := f
	return &cp, nil
}

func (m *memStore) UpdateFrame(_ context.Context, f *model.Frame) error {
	m.frames[f.ID] = *f
	return nil
}

func (m *memStore) ListFrames(context.Context, store.FrameFilter) ([]model.Frame, error) {
	return nil, nil
}

func (m *memStore) DeleteFrame(context.Context, string) (int, error) { return 0, store.ErrNotFound }

func (m *memStore) CreateDoubt(_ context.Context, d *model.Doubt) error {
	if m.failCreate {
		return eris.New("db down")
	}
	m.doubts[d.ID] = *d
	m.created = append(m.created, *d)
	return nil
}

func (m *memStore) GetDoubt(_ context.Context, id string) (*model.Doubt, error) {
	d, ok := m.doubts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := d
	return &cp, nil
}

func (m *memStore) UpdateDoubt(_ context.Context, d *model.Doubt) error {
	if m.failUpdate {
		return eris.New("db down")
	}
	if _, ok := m.doubts[d.ID]; !ok {
		return store.ErrNotFound
	}
	m.doubts[d.ID] = *d
	return nil
}

func (m *memStore) ListDoubts(context.Context, store.DoubtFilter) ([]model.Doubt, error) {
	return nil, nil
}

func (m *memStore) DeleteDoubt(_ context.Context, id string) error {
	if _, ok := m.doubts[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.doubts, id)
	return nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

// recordTracker counts solve notifications.
type recordTracker struct {
	users []string
}

func (t *recordTracker) RecordSolve(_ context.Context, userID string) {
	t.users = append(t.users, userID)
}
