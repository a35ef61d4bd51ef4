package model

import "time"

// DoubtStatus represents the state of an answer record.
type DoubtStatus string

const (
	DoubtStatusAnswered DoubtStatus = "answered"
	DoubtStatusPending  DoubtStatus = "pending"
	DoubtStatusFailed   DoubtStatus = "failed"
)

// AnswerMeta is the structured classification returned with an answer.
type AnswerMeta struct {
	Subject      string `json:"subject,omitempty"`
	Topic        string `json:"topic,omitempty"`
	Subtopic     string `json:"subtopic,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
	QuestionType string `json:"question_type,omitempty"`
}

// FollowUps holds up to three suggested follow-up questions, graded by
// difficulty relative to the original question.
type FollowUps struct {
	Easy      string `json:"easy,omitempty"`
	Medium    string `json:"medium,omitempty"`
	Challenge string `json:"challenge,omitempty"`
}

// CodeBlock is an optional code snippet attached to an answer.
type CodeBlock struct {
	Language string `json:"language"`
	Snippet  string `json:"snippet"`
}

// ContextSnippet is one retrieved reference passage used to ground an
// answer, kept for attribution.
type ContextSnippet struct {
	Text     string        `json:"text"`
	Score    float64       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Doubt is the persisted result of one question: the explanation steps,
// final answer, confidence, and everything retrieved or generated along
// the way.
type Doubt struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	Question    string   `json:"question"`
	FrameID     string   `json:"frame_id,omitempty"`
	Steps       []string `json:"steps"`
	Explanation string   `json:"explanation,omitempty"`
	FinalAnswer string   `json:"final_answer"`
	Confidence  float64  `json:"confidence"`

	Meta      AnswerMeta `json:"meta"`
	FollowUps FollowUps  `json:"follow_ups"`

	MermaidCode string     `json:"mermaid_code,omitempty"`
	Code        *CodeBlock `json:"code,omitempty"`

	RetrievedContext []ContextSnippet `json:"retrieved_context"`

	Status     DoubtStatus `json:"status"`
	DurationMS int64       `json:"duration_ms"`

	Bookmarked bool   `json:"bookmarked"`
	Rating     int    `json:"rating,omitempty"`
	Feedback   string `json:"feedback,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
