package server

import (
	"context"

	"github.com/edustack/doubtsolver/internal/answer"
	"github.com/edustack/doubtsolver/internal/ingest"
	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/store"
)

// fakeIngester records calls and returns canned results.
type fakeIngester struct {
	lastIngest   ingest.Request
	ingestFrame  *model.Frame
	ingestErr    error
	lastRegionID string
	lastRect     model.CropRect
	region       *ingest.Region
	regionErr    error
	deletedID    string
	deleteCount  int
	deleteErr    error
}

func (f *fakeIngester) Ingest(_ context.Context, req ingest.Request) (*model.Frame, error) {
	f.lastIngest = req
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return f.ingestFrame, nil
}

func (f *fakeIngester) ExtractRegion(_ context.Context, frameID string, rect model.CropRect) (*ingest.Region, error) {
	f.lastRegionID = frameID
	f.lastRect = rect
	if f.regionErr != nil {
		return nil, f.regionErr
	}
	return f.region, nil
}

func (f *fakeIngester) Delete(_ context.Context, frameID string) (int, error) {
	f.deletedID = frameID
	return f.deleteCount, f.deleteErr
}

// fakeAnswerer records calls and returns canned results.
type fakeAnswerer struct {
	lastAnswer    answer.Request
	doubt         *model.Doubt
	answerErr     error
	diagram       string
	diagramErr    error
	lastDiagramID string
	lastDiagType  string
	rateErr       error
	lastRating    int
	lastFeedback  string
	bookmarked    bool
	bookmarkErr   error
	deleteErr     error
	lastDeleteID  string
	lastOwnerID   string
}

func (f *fakeAnswerer) Answer(_ context.Context, req answer.Request) (*model.Doubt, error) {
	f.lastAnswer = req
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return f.doubt, nil
}

func (f *fakeAnswerer) RegenerateDiagram(_ context.Context, doubtID, diagramType string) (string, error) {
	f.lastDiagramID = doubtID
	f.lastDiagType = diagramType
	return f.diagram, f.diagramErr
}

func (f *fakeAnswerer) Rate(_ context.Context, _ string, rating int, feedback string) error {
	f.lastRating = rating
	f.lastFeedback = feedback
	return f.rateErr
}

func (f *fakeAnswerer) ToggleBookmark(context.Context, string) (bool, error) {
	return f.bookmarked, f.bookmarkErr
}

func (f *fakeAnswerer) Delete(_ context.Context, doubtID, ownerID string) error {
	f.lastDeleteID = doubtID
	f.lastOwnerID = ownerID
	return f.deleteErr
}

// fakeStore serves reads for the list and get endpoints.
type fakeStore struct {
	frames      map[string]model.Frame
	doubts      map[string]model.Doubt
	frameList   []model.Frame
	doubtList   []model.Doubt
	lastFFilter store.FrameFilter
	lastDFilter store.DoubtFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{frames: map[string]model.Frame{}, doubts: map[string]model.Doubt{}}
}

func (f *fakeStore) CreateFrame(_ context.Context, fr *model.Frame) error {
	f.frames[fr.ID] = *fr
	return nil
}

func (f *fakeStore) GetFrame(_ context.Context, id string) (*model.Frame, error) {
	fr, ok := f.frames[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &fr, nil
}

func (f *fakeStore) UpdateFrame(_ context.Context, fr *model.Frame) error {
	f.frames[fr.ID] = *fr
	return nil
}

func (f *fakeStore) ListFrames(_ context.Context, filter store.FrameFilter) ([]model.Frame, error) {
	f.lastFFilter = filter
	return f.frameList, nil
}

func (f *fakeStore) DeleteFrame(context.Context, string) (int, error) { return 0, store.ErrNotFound }

func (f *fakeStore) CreateDoubt(_ context.Context, d *model.Doubt) error {
	f.doubts[d.ID] = *d
	return nil
}

func (f *fakeStore) GetDoubt(_ context.Context, id string) (*model.Doubt, error) {
	d, ok := f.doubts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (f *fakeStore) UpdateDoubt(_ context.Context, d *model.Doubt) error {
	f.doubts[d.ID] = *d
	return nil
}

func (f *fakeStore) ListDoubts(_ context.Context, filter store.DoubtFilter) ([]model.Doubt, error) {
	f.lastDFilter = filter
	return f.doubtList, nil
}

func (f *fakeStore) DeleteDoubt(_ context.Context, id string) error {
	if _, ok := f.doubts[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.doubts, id)
	return nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }
