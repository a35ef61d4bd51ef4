// Package answer drives a question through retrieval, generation,
// repair, and persistence, producing one answer record per question.
package answer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edustack/doubtsolver/internal/diagram"
	"github.com/edustack/doubtsolver/internal/genai"
	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/retriever"
	"github.com/edustack/doubtsolver/internal/store"
	"github.com/edustack/doubtsolver/internal/vector"
)

// failedAnswerText is the user-facing final answer persisted on a
// failed record.
const failedAnswerText = "Sorry, we couldn't process your question right now. Please try again."

// Request is one question to answer.
type Request struct {
	OwnerID  string
	Question string
	// FrameID seeds the question with a processed frame's OCR text.
	FrameID string
	// FollowUpOf answers in the context of a prior record's exchange
	// instead of retrieved references.
	FollowUpOf string
	TopK       int
	Filter     *vector.Filter
}

// Orchestrator runs the answer pipeline.
type Orchestrator struct {
	retriever *retriever.Retriever
	backend   genai.Backend
	store     store.Store
	tracker   SolveTracker
}

// SolveTracker receives a side-effect notification per answered
// question.
type SolveTracker interface {
	RecordSolve(ctx context.Context, userID string)
}

// New creates an Orchestrator. The tracker may be nil.
func New(r *retriever.Retriever, backend genai.Backend, st store.Store, tracker SolveTracker) *Orchestrator {
	return &Orchestrator{retriever: r, backend: backend, store: st, tracker: tracker}
}

// Answer retrieves context, generates a structured answer, repairs its
// diagram, and persists the record. Generation failure is absorbed by
// the backend's fallback chain; a persistence failure after generation
// is surfaced to the caller after a best-effort failed record is
// written.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*model.Doubt, error) {
	if req.OwnerID == "" {
		return nil, eris.New("answer: owner id is required")
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, eris.New("answer: question is required")
	}

	start := time.Now()

	question := req.Question
	if req.FrameID != "" {
		question = o.seedFromFrame(ctx, req.FrameID, question)
	}

	var ans *genai.Answer
	snippets := []model.ContextSnippet{}

	if req.FollowUpOf != "" {
		prior, err := o.store.GetDoubt(ctx, req.FollowUpOf)
		if err != nil {
			return nil, err
		}
		ans, err = o.backend.AskFollowUp(ctx, question, prior.Question, prior.FinalAnswer)
		if err != nil {
			o.persistFailure(ctx, req, start)
			return nil, eris.Wrap(err, "answer: generation")
		}
	} else {
		snippets = o.retriever.Retrieve(ctx, question, retriever.Options{TopK: req.TopK, Filter: req.Filter})
		if snippets == nil {
			snippets = []model.ContextSnippet{}
		}
		stats := retriever.Summarize(snippets)
		zap.L().Debug("answer: retrieved context",
			zap.Int("count", stats.Count),
			zap.Float64("avg_score", stats.AvgScore),
			zap.Float64("max_score", stats.MaxScore),
		)

		var err error
		ans, err = o.backend.AskWithContext(ctx, question, snippets)
		if err != nil {
			o.persistFailure(ctx, req, start)
			return nil, eris.Wrap(err, "answer: generation")
		}
	}

	ans.Confidence = model.NormalizeConfidence(ans.Confidence)
	ans.MermaidCode = diagram.Repair(ans.MermaidCode)
	if ans.Code != nil && strings.TrimSpace(ans.Code.Snippet) == "" {
		ans.Code = nil
	}

	doubt := &model.Doubt{
		ID:               uuid.New().String(),
		OwnerID:          req.OwnerID,
		Question:         req.Question,
		FrameID:          req.FrameID,
		Steps:            ans.Steps,
		Explanation:      ans.Explanation,
		FinalAnswer:      ans.FinalAnswer,
		Confidence:       ans.Confidence,
		Meta:             ans.Meta,
		FollowUps:        ans.FollowUps,
		MermaidCode:      ans.MermaidCode,
		Code:             ans.Code,
		RetrievedContext: snippets,
		Status:           model.DoubtStatusAnswered,
		DurationMS:       time.Since(start).Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	if doubt.Steps == nil {
		doubt.Steps = []string{}
	}

	if err := o.store.CreateDoubt(ctx, doubt); err != nil {
		o.persistFailure(ctx, req, start)
		return nil, eris.Wrap(err, "answer: persist record")
	}

	if o.tracker != nil {
		o.tracker.RecordSolve(ctx, req.OwnerID)
	}
	return doubt, nil
}

// seedFromFrame prefixes the question with the frame's extracted text.
// A missing or unreadable frame leaves the question unchanged.
func (o *Orchestrator) seedFromFrame(ctx context.Context, frameID, question string) string {
	frame, err := o.store.GetFrame(ctx, frameID)
	if err != nil {
		zap.L().Warn("answer: frame lookup failed, answering without it",
			zap.String("frame_id", frameID),
			zap.Error(err))
		return question
	}
	if strings.TrimSpace(frame.OCRText) == "" {
		return question
	}
	return question + "\n\nText extracted from the uploaded image:\n" + frame.OCRText
}

// persistFailure writes a failed record so the question and its outcome
// remain observable. Best-effort: its own failure is only logged.
func (o *Orchestrator) persistFailure(ctx context.Context, req Request, start time.Time) {
	doubt := &model.Doubt{
		ID:               uuid.New().String(),
		OwnerID:          req.OwnerID,
		Question:         req.Question,
		FrameID:          req.FrameID,
		Steps:            []string{},
		FinalAnswer:      failedAnswerText,
		Confidence:       0,
		RetrievedContext: []model.ContextSnippet{},
		Status:           model.DoubtStatusFailed,
		DurationMS:       time.Since(start).Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	if err := o.store.CreateDoubt(ctx, doubt); err != nil {
		zap.L().Error("answer: persist failure record failed",
			zap.String("owner_id", req.OwnerID),
			zap.Error(err))
	}
}

// RegenerateDiagram asks the backend for fresh diagram markup for an
// existing record, repairs it, persists it, and returns it.
func (o *Orchestrator) RegenerateDiagram(ctx context.Context, doubtID, diagramType string) (string, error) {
	doubt, err := o.store.GetDoubt(ctx, doubtID)
	if err != nil {
		return "", err
	}
	if diagramType == "" {
		diagramType = "flowchart"
	}

	prompt := "Produce a " + diagramType + " in mermaid syntax that illustrates the answer below. " +
		"Respond with the mermaid markup only, no prose.\n\n" +
		"Question: " + doubt.Question + "\n\nAnswer: " + doubt.FinalAnswer
	raw, err := o.backend.AskRaw(ctx, prompt)
	if err != nil {
		return "", eris.Wrap(err, "answer: regenerate diagram")
	}

	markup := diagram.Repair(raw)
	if markup == "" {
		return "", eris.New("answer: backend produced no usable diagram markup")
	}

	doubt.MermaidCode = markup
	if err := o.store.UpdateDoubt(ctx, doubt); err != nil {
		return "", err
	}
	return markup, nil
}

// Rate records a 1-5 rating with optional feedback. The range is
// validated before any store call.
func (o *Orchestrator) Rate(ctx context.Context, doubtID string, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return eris.Errorf("answer: rating must be between 1 and 5, got %d", rating)
	}
	doubt, err := o.store.GetDoubt(ctx, doubtID)
	if err != nil {
		return err
	}
	doubt.Rating = rating
	doubt.Feedback = feedback
	return o.store.UpdateDoubt(ctx, doubt)
}

// ToggleBookmark flips the record's bookmark flag and returns the new
// state.
func (o *Orchestrator) ToggleBookmark(ctx context.Context, doubtID string) (bool, error) {
	doubt, err := o.store.GetDoubt(ctx, doubtID)
	if err != nil {
		return false, err
	}
	doubt.Bookmarked = !doubt.Bookmarked
	if err := o.store.UpdateDoubt(ctx, doubt); err != nil {
		return false, err
	}
	return doubt.Bookmarked, nil
}

// Delete removes a record, scoped to its owner.
func (o *Orchestrator) Delete(ctx context.Context, doubtID, ownerID string) error {
	doubt, err := o.store.GetDoubt(ctx, doubtID)
	if err != nil {
		return err
	}
	if doubt.OwnerID != ownerID {
		return store.ErrNotFound
	}
	return o.store.DeleteDoubt(ctx, doubtID)
}
