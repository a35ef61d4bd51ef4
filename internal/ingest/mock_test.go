package ingest

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/raster"
	"github.com/edustack/doubtsolver/internal/storage"
	"github.com/edustack/doubtsolver/internal/store"
	"github.com/edustack/doubtsolver/internal/vector"
)

// memStore is an in-memory Store capturing every persisted transition.
type memStore struct {
	frames      map[string]model.Frame
	transitions map[string][]model.FrameStatus
	failUpdate  bool
}

func newMemStore() *memStore {
	return &memStore{
		frames:      map[string]model.Frame{},
		transitions: map[string][]model.FrameStatus{},
	}
}

func (m *memStore) CreateFrame(_ context.Context, f *model.Frame) error {
	m.frames[f.ID] = *f
	m.transitions[f.ID] = append(m.transitions[f.ID], f.Status)
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
	if m.failUpdate {
		return eris.New("store down")
	}
	if _, ok := m.frames[f.ID]; !ok {
		return store.ErrNotFound
	}
	m.frames[f.ID] = *f
	m.transitions[f.ID] = append(m.transitions[f.ID], f.Status)
	return nil
}

func (m *memStore) ListFrames(_ context.Context, filter store.FrameFilter) ([]model.Frame, error) {
	var out []model.Frame
	for _, f := range m.frames {
		if filter.ParentID != "" && f.ParentID != filter.ParentID {
			continue
		}
		if filter.OwnerID != "" && f.OwnerID != filter.OwnerID {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (m *memStore) DeleteFrame(_ context.Context, id string) (int, error) {
	n := 0
	for k, f := range m.frames {
		if k == id || f.ParentID == id {
			delete(m.frames, k)
			n++
		}
	}
	if n == 0 {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (m *memStore) CreateDoubt(context.Context, *model.Doubt) error       { return nil }
func (m *memStore) GetDoubt(context.Context, string) (*model.Doubt, error) {
	return nil, store.ErrNotFound
}
func (m *memStore) UpdateDoubt(context.Context, *model.Doubt) error { return nil }
func (m *memStore) ListDoubts(context.Context, store.DoubtFilter) ([]model.Doubt, error) {
	return nil, nil
}
func (m *memStore) DeleteDoubt(context.Context, string) error { return nil }
func (m *memStore) Migrate(context.Context) error             { return nil }
func (m *memStore) Close() error                              { return nil }

// fakeUploader hands out sequential URLs and records deletions.
type fakeUploader struct {
	uploads  int
	deleted  []string
	failAll  bool
	failFrom int // fail uploads numbered >= failFrom (1-based); 0 disables
}

func (u *fakeUploader) Upload(_ context.Context, data []byte, _ storage.UploadOptions) (*storage.Asset, error) {
	u.uploads++
	if u.failAll || (u.failFrom > 0 && u.uploads >= u.failFrom) {
		return nil, eris.New("storage unavailable")
	}
	return &storage.Asset{
		URL:      fmt.Sprintf("https://cdn.example.com/a%d.png", u.uploads),
		PublicID: fmt.Sprintf("a%d", u.uploads),
		Bytes:    int64(len(data)),
		Width:    800,
		Height:   600,
	}, nil
}

func (u *fakeUploader) Delete(_ context.Context, publicID string) error {
	u.deleted = append(u.deleted, publicID)
	return nil
}

// fakeExtractor returns canned results keyed by call count.
type fakeExtractor struct {
	calls   int
	failOn  map[int]bool // 1-based call numbers that fail
	results []*model.OCRResult
}

func (e *fakeExtractor) Extract(_ context.Context, _ string) (*model.OCRResult, error) {
	e.calls++
	if e.failOn[e.calls] {
		return nil, eris.New("ocr provider error")
	}
	if len(e.results) > 0 {
		res := e.results[(e.calls-1)%len(e.results)]
		return res, nil
	}
	return &model.OCRResult{Text: "a force acts on the body", Confidence: 0.9}, nil
}

// fakeRasterizer returns a fixed number of pages.
type fakeRasterizer struct {
	pages int
	fail  bool
}

func (r *fakeRasterizer) ConvertToImages(_ context.Context, _ string, _ int) ([]raster.Page, error) {
	if r.fail {
		return nil, eris.New("pdftoppm exploded")
	}
	out := make([]raster.Page, r.pages)
	for i := range out {
		out[i] = raster.Page{PageNumber: i + 1, ImageBytes: []byte{0x1}, Width: 800, Height: 600}
	}
	return out, nil
}

func (r *fakeRasterizer) Metadata(context.Context, string) (*raster.Metadata, error) {
	return &raster.Metadata{PageCount: r.pages}, nil
}

// fakeIndex records deleted point ids.
type fakeIndex struct {
	deleted []string
}

func (i *fakeIndex) Upsert(context.Context, []vector.Point) error { return nil }

func (i *fakeIndex) Search(context.Context, []float32, int, *vector.Filter) ([]vector.Result, error) {
	return nil, nil
}

func (i *fakeIndex) Delete(_ context.Context, ids []string) error {
	i.deleted = append(i.deleted, ids...)
	return nil
}

func (i *fakeIndex) Count(context.Context) (int, error) { return 0, nil }
