// Package genai produces structured answers from generation backends,
// with model fallback and format repair so callers always receive a
// usable answer object.
package genai

import (
	"context"

	"github.com/edustack/doubtsolver/internal/model"
)

// Answer is the structured output of one generation call.
type Answer struct {
	Explanation string           `json:"explanation"`
	Steps       []string         `json:"steps"`
	FinalAnswer string           `json:"final_answer"`
	Confidence  float64          `json:"confidence"`
	Meta        model.AnswerMeta `json:"meta"`
	FollowUps   model.FollowUps  `json:"follow_up_questions"`
	MermaidCode string           `json:"mermaid_code,omitempty"`
	Code        *model.CodeBlock `json:"code,omitempty"`

	// RawResponse marks degraded answers produced without any backend
	// output.
	RawResponse string `json:"raw_response,omitempty"`
}

// Backend is a generation service capable of structured answering, raw
// completion, and embedding.
type Backend interface {
	AskWithContext(ctx context.Context, question string, context []model.ContextSnippet) (*Answer, error)
	AskFollowUp(ctx context.Context, question, priorQuestion, priorAnswer string) (*Answer, error)
	AskRaw(ctx context.Context, prompt string) (string, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// FallbackConfidence is the confidence of the degraded answer returned
// when every model in the chain has failed.
const FallbackConfidence = 0.3

// fallbackMarker is stored in RawResponse on total backend exhaustion.
const fallbackMarker = "fallback"

// FallbackAnswer returns the fixed-shape degraded answer used when no
// backend produced output. It is structurally valid and safe to persist.
func FallbackAnswer(question string) *Answer {
	return &Answer{
		Explanation: "We could not generate a full explanation for this question right now.",
		Steps: []string{
			"We're sorry — our solver is having trouble reaching its knowledge services.",
			"Your question has been recorded; please try asking it again in a moment.",
		},
		FinalAnswer: "Sorry, we couldn't solve this question right now. Please try again shortly.",
		Confidence:  FallbackConfidence,
		Meta:        model.AnswerMeta{QuestionType: "unknown", Difficulty: string(model.DifficultyUnknown)},
		RawResponse: fallbackMarker,
	}
}
