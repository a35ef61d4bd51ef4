package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/ingest"
	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/store"
	"github.com/edustack/doubtsolver/internal/vector"
)

type testEnv struct {
	ingester *fakeIngester
	answerer *fakeAnswerer
	store    *fakeStore
	srv      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		ingester: &fakeIngester{},
		answerer: &fakeAnswerer{},
		store:    newFakeStore(),
	}
	s := New(env.ingester, env.answerer, env.store, config.ServerConfig{})
	env.srv = httptest.NewServer(s.Router())
	t.Cleanup(env.srv.Close)
	return env
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func multipartUpload(t *testing.T, fields map[string]string, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateFrame(t *testing.T) {
	env := newTestEnv(t)
	env.ingester.ingestFrame = &model.Frame{ID: "f1", Status: model.FrameStatusCompleted}

	buf, ctype := multipartUpload(t, map[string]string{"owner_id": "user-1"}, "doubt.png", []byte("png-bytes"))
	resp, err := http.Post(env.srv.URL+"/frames", ctype, buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var frame model.Frame
	decodeBody(t, resp, &frame)
	assert.Equal(t, "f1", frame.ID)

	assert.Equal(t, "user-1", env.ingester.lastIngest.OwnerID)
	assert.Equal(t, model.FrameKindImage, env.ingester.lastIngest.Kind)
	assert.Equal(t, "doubt.png", env.ingester.lastIngest.Filename)
	assert.Equal(t, []byte("png-bytes"), env.ingester.lastIngest.Data)
}

func TestCreateFrameValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		wantMsg  string
	}{
		{"missing owner", map[string]string{}, "a.png", "owner_id is required"},
		{"missing file", map[string]string{"owner_id": "u"}, "", "file is required"},
		{"unknown kind", map[string]string{"owner_id": "u", "kind": "video"}, "a.png", "unknown kind"},
		{"crop without geometry", map[string]string{"owner_id": "u", "kind": "crop", "parent_id": "p"}, "a.png", "invalid crop_x"},
		{"crop without parent", map[string]string{
			"owner_id": "u", "kind": "crop",
			"crop_x": "1", "crop_y": "1", "crop_width": "10", "crop_height": "10",
		}, "a.png", "parent_id is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf, ctype := multipartUpload(t, tc.fields, tc.filename, []byte("x"))
			resp, err := http.Post(env.srv.URL+"/frames", ctype, buf)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]string
			decodeBody(t, resp, &body)
			assert.Contains(t, body["error"], tc.wantMsg)
		})
	}
}

func TestCreateFrameCrop(t *testing.T) {
	env := newTestEnv(t)
	env.ingester.ingestFrame = &model.Frame{ID: "c1"}

	buf, ctype := multipartUpload(t, map[string]string{
		"owner_id": "u", "kind": "crop", "parent_id": "p1",
		"crop_x": "10", "crop_y": "20", "crop_width": "100", "crop_height": "50",
	}, "crop.png", []byte("x"))
	resp, err := http.Post(env.srv.URL+"/frames", ctype, buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	require.NotNil(t, env.ingester.lastIngest.Crop)
	assert.Equal(t, 10.0, env.ingester.lastIngest.Crop.X)
	assert.Equal(t, 100.0, env.ingester.lastIngest.Crop.Width)
	assert.Equal(t, "p1", env.ingester.lastIngest.ParentID)
}

func TestGetFrame(t *testing.T) {
	env := newTestEnv(t)
	env.store.frames["f1"] = model.Frame{ID: "f1", OwnerID: "u"}

	resp, err := http.Get(env.srv.URL + "/frames/f1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var frame model.Frame
	decodeBody(t, resp, &frame)
	assert.Equal(t, "f1", frame.ID)

	resp, err = http.Get(env.srv.URL + "/frames/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListFrames(t *testing.T) {
	env := newTestEnv(t)
	env.store.frameList = []model.Frame{{ID: "f1"}, {ID: "f2"}}

	resp, err := http.Get(env.srv.URL + "/frames?owner_id=u&kind=document_page&parent_id=p1&limit=10")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Frames []model.Frame `json:"frames"`
		Count  int           `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 2, body.Count)

	assert.Equal(t, store.FrameFilter{
		OwnerID:  "u",
		Kind:     model.FrameKindDocumentPage,
		ParentID: "p1",
		Limit:    10,
	}, env.store.lastFFilter)
}

func TestListFramesEmpty(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/frames")
	require.NoError(t, err)

	var body struct {
		Frames []model.Frame `json:"frames"`
	}
	decodeBody(t, resp, &body)
	assert.NotNil(t, body.Frames)
	assert.Empty(t, body.Frames)
}

func TestDeleteFrame(t *testing.T) {
	env := newTestEnv(t)
	env.ingester.deleteCount = 4

	req, err := http.NewRequest(http.MethodDelete, env.srv.URL+"/frames/f1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int
	decodeBody(t, resp, &body)
	assert.Equal(t, 4, body["deleted"])
	assert.Equal(t, "f1", env.ingester.deletedID)
}

func TestDeleteFrameNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.ingester.deleteErr = store.ErrNotFound

	req, err := http.NewRequest(http.MethodDelete, env.srv.URL+"/frames/nope", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExtractRegion(t *testing.T) {
	env := newTestEnv(t)
	env.ingester.region = &ingest.Region{Text: "alpha beta", WordCount: 2}

	resp := postJSON(t, env.srv.URL+"/frames/f1/region", model.CropRect{X: 0, Y: 0, Width: 50, Height: 20})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var region ingest.Region
	decodeBody(t, resp, &region)
	assert.Equal(t, "alpha beta", region.Text)
	assert.Equal(t, 2, region.WordCount)
	assert.Equal(t, "f1", env.ingester.lastRegionID)
	assert.Equal(t, 50.0, env.ingester.lastRect.Width)
}

func TestExtractRegionRejectsBadRect(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.srv.URL+"/frames/f1/region", model.CropRect{Width: 0, Height: 10})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.ingester.lastRegionID)
}

func TestCreateDoubt(t *testing.T) {
	env := newTestEnv(t)
	env.answerer.doubt = &model.Doubt{ID: "d1", FinalAnswer: "because physics", Status: model.DoubtStatusAnswered}

	resp := postJSON(t, env.srv.URL+"/doubts", map[string]any{
		"owner_id": "user-1",
		"question": "Why is the sky blue?",
		"top_k":    3,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var doubt model.Doubt
	decodeBody(t, resp, &doubt)
	assert.Equal(t, "d1", doubt.ID)

	assert.Equal(t, "user-1", env.answerer.lastAnswer.OwnerID)
	assert.Equal(t, 3, env.answerer.lastAnswer.TopK)
}

func TestCreateDoubtSubjectFilter(t *testing.T) {
	env := newTestEnv(t)
	env.answerer.doubt = &model.Doubt{ID: "d3"}

	resp := postJSON(t, env.srv.URL+"/doubts", map[string]any{
		"owner_id": "user-1",
		"question": "What is torque?",
		"subject":  "physics",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, &vector.Filter{Field: "subject", Value: "physics"}, env.answerer.lastAnswer.Filter)
}

func TestCreateDoubtDifficultyFilter(t *testing.T) {
	env := newTestEnv(t)
	env.answerer.doubt = &model.Doubt{ID: "d4"}

	resp := postJSON(t, env.srv.URL+"/doubts", map[string]any{
		"owner_id":   "user-1",
		"question":   "Prove the chain rule",
		"difficulty": "hard",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, &vector.Filter{Field: "difficulty", Value: "hard"}, env.answerer.lastAnswer.Filter)
}

func TestCreateDoubtRejectsCombinedFilters(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.srv.URL+"/doubts", map[string]any{
		"owner_id":   "user-1",
		"question":   "What is torque?",
		"subject":    "physics",
		"difficulty": "hard",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateDoubtFollowUp(t *testing.T) {
	env := newTestEnv(t)
	env.answerer.doubt = &model.Doubt{ID: "d2"}

	resp := postJSON(t, env.srv.URL+"/doubts", map[string]any{
		"owner_id":     "user-1",
		"question":     "And at sunset?",
		"follow_up_of": "d1",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "d1", env.answerer.lastAnswer.FollowUpOf)
}

func TestCreateDoubtValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.srv.URL+"/doubts", map[string]any{"question": "q"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, env.srv.URL+"/doubts", map[string]any{"owner_id": "u", "question": "  "})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Post(env.srv.URL+"/doubts", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateDoubtPipelineError(t *testing.T) {
	env := newTestEnv(t)
	env.answerer.answerErr = eris.New("generation exploded")

	resp := postJSON(t, env.srv.URL+"/doubts", map[string]any{"owner_id": "u", "question": "q"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "internal error", body["error"])
}

func TestListDoubtsBookmarkedFilter(t *testing.T) {
	env := newTestEnv(t)
	env.store.doubtList = []model.Doubt{{ID: "d1"}}

	resp, err := http.Get(env.srv.URL + "/doubts?owner_id=u&bookmarked=true")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.NotNil(t, env.store.lastDFilter.Bookmarked)
	assert.True(t, *env.store.lastDFilter.Bookmarked)

	resp, err = http.Get(env.srv.URL + "/doubts?bookmarked=maybe")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetDoubt(t *testing.T) {
	env := newTestEnv(t)
	env.store.doubts["d1"] = model.Doubt{ID: "d1"}

	resp, err := http.Get(env.srv.URL + "/doubts/d1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(env.srv.URL + "/doubts/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteDoubt(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodDelete, env.srv.URL+"/doubts/d1?owner_id=user-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "d1", env.answerer.lastDeleteID)
	assert.Equal(t, "user-1", env.answerer.lastOwnerID)

	// Owner is mandatory.
	req, err = http.NewRequest(http.MethodDelete, env.srv.URL+"/doubts/d1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateDoubt(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.srv.URL+"/doubts/d1/rating", map[string]any{"rating": 4, "feedback": "clear"})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4, env.answerer.lastRating)
	assert.Equal(t, "clear", env.answerer.lastFeedback)

	for _, rating := range []int{0, 6} {
		resp := postJSON(t, env.srv.URL+"/doubts/d1/rating", map[string]any{"rating": rating})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestBookmarkDoubt(t *testing.T) {
	env := newTestEnv(t)
	env.answerer.bookmarked = true

	resp := postJSON(t, env.srv.URL+"/doubts/d1/bookmark", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]bool
	decodeBody(t, resp, &body)
	assert.True(t, body["bookmarked"])
}

func TestRegenerateDiagram(t *testing.T) {
	env := newTestEnv(t)
	env.answerer.diagram = "graph TD\nA --> B"

	resp := postJSON(t, env.srv.URL+"/doubts/d1/diagram", map[string]string{"type": "sequence"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "graph TD\nA --> B", body["mermaid_code"])
	assert.Equal(t, "d1", env.answerer.lastDiagramID)
	assert.Equal(t, "sequence", env.answerer.lastDiagType)
}

func TestRegenerateDiagramNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.answerer.diagramErr = store.ErrNotFound

	resp := postJSON(t, env.srv.URL+"/doubts/nope/diagram", map[string]string{})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
