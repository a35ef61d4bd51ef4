package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/edustack/doubtsolver/internal/answer"
	"github.com/edustack/doubtsolver/internal/ingest"
	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/store"
	"github.com/edustack/doubtsolver/internal/vector"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateFrame(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	ownerID := r.FormValue("owner_id")
	if ownerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	kind := model.FrameKind(r.FormValue("kind"))
	if kind == "" {
		kind = model.FrameKindImage
	}
	switch kind {
	case model.FrameKindImage, model.FrameKindDocument, model.FrameKindCrop:
	default:
		respondError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read file")
		return
	}

	req := ingest.Request{
		OwnerID:  ownerID,
		Kind:     kind,
		Data:     data,
		Filename: header.Filename,
		ParentID: r.FormValue("parent_id"),
	}

	if kind == model.FrameKindCrop {
		crop, err := cropFromForm(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Crop = crop
		if req.ParentID == "" {
			respondError(w, http.StatusBadRequest, "parent_id is required for crops")
			return
		}
	}

	frame, err := s.ingester.Ingest(r.Context(), req)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, frame)
}

// cropFromForm reads crop geometry from multipart fields.
func cropFromForm(r *http.Request) (*model.CropRect, error) {
	parse := func(field string) (float64, error) {
		v, err := strconv.ParseFloat(r.FormValue(field), 64)
		if err != nil {
			return 0, errBadField(field)
		}
		return v, nil
	}
	x, err := parse("crop_x")
	if err != nil {
		return nil, err
	}
	y, err := parse("crop_y")
	if err != nil {
		return nil, err
	}
	width, err := parse("crop_width")
	if err != nil {
		return nil, err
	}
	height, err := parse("crop_height")
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, errBadField("crop size")
	}
	return &model.CropRect{X: x, Y: y, Width: width, Height: height}, nil
}

type errBadField string

func (e errBadField) Error() string { return "invalid " + string(e) }

func (s *Server) handleListFrames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.FrameFilter{
		OwnerID:  q.Get("owner_id"),
		Kind:     model.FrameKind(q.Get("kind")),
		Status:   model.FrameStatus(q.Get("status")),
		ParentID: q.Get("parent_id"),
		Limit:    intParam(q.Get("limit")),
		Offset:   intParam(q.Get("offset")),
	}
	frames, err := s.store.ListFrames(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if frames == nil {
		frames = []model.Frame{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"frames": frames, "count": len(frames)})
}

func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := s.store.GetFrame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, frame)
}

func (s *Server) handleDeleteFrame(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.ingester.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) handleExtractRegion(w http.ResponseWriter, r *http.Request) {
	var rect model.CropRect
	if err := json.NewDecoder(r.Body).Decode(&rect); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rect.Width <= 0 || rect.Height <= 0 {
		respondError(w, http.StatusBadRequest, "region must have positive width and height")
		return
	}
	region, err := s.ingester.ExtractRegion(r.Context(), chi.URLParam(r, "id"), rect)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, region)
}

func (s *Server) handleCreateDoubt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID    string `json:"owner_id"`
		Question   string `json:"question"`
		FrameID    string `json:"frame_id"`
		FollowUpOf string `json:"follow_up_of"`
		TopK       int    `json:"top_k"`
		Subject    string `json:"subject"`
		Difficulty string `json:"difficulty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	filter, err := vector.NewFilter(req.Subject, req.Difficulty)
	if err != nil {
		respondError(w, http.StatusBadRequest, "only one of subject and difficulty may be set")
		return
	}

	doubt, err := s.answerer.Answer(r.Context(), answer.Request{
		OwnerID:    req.OwnerID,
		Question:   req.Question,
		FrameID:    req.FrameID,
		FollowUpOf: req.FollowUpOf,
		TopK:       req.TopK,
		Filter:     filter,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, doubt)
}

func (s *Server) handleListDoubts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DoubtFilter{
		OwnerID: q.Get("owner_id"),
		Status:  model.DoubtStatus(q.Get("status")),
		Limit:   intParam(q.Get("limit")),
		Offset:  intParam(q.Get("offset")),
	}
	if v := q.Get("bookmarked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid bookmarked")
			return
		}
		filter.Bookmarked = &b
	}
	doubts, err := s.store.ListDoubts(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if doubts == nil {
		doubts = []model.Doubt{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"doubts": doubts, "count": len(doubts)})
}

func (s *Server) handleGetDoubt(w http.ResponseWriter, r *http.Request) {
	doubt, err := s.store.GetDoubt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doubt)
}

func (s *Server) handleDeleteDoubt(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	if err := s.answerer.Delete(r.Context(), chi.URLParam(r, "id"), ownerID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRateDoubt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		respondError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}
	if err := s.answerer.Rate(r.Context(), chi.URLParam(r, "id"), req.Rating, req.Feedback); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBookmarkDoubt(w http.ResponseWriter, r *http.Request) {
	bookmarked, err := s.answerer.ToggleBookmark(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"bookmarked": bookmarked})
}

func (s *Server) handleRegenerateDiagram(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if r.Body != nil {
		// An empty body means the default diagram type.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	markup, err := s.answerer.RegenerateDiagram(r.Context(), chi.URLParam(r, "id"), req.Type)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"mermaid_code": markup})
}

func intParam(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
