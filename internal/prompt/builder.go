// Package prompt renders questions and retrieved context into
// generation requests with a fixed JSON output contract.
package prompt

import (
	"fmt"
	"strings"

	"github.com/edustack/doubtsolver/internal/model"
)

// Tone selects the voice of the explanation.
type Tone string

const (
	ToneTutor    Tone = "tutor"
	ToneConcise  Tone = "concise"
	ToneExam     Tone = "exam"
	ToneSocratic Tone = "socratic"
)

// MaxContextChunks caps how many retrieved snippets are rendered into
// one prompt.
const MaxContextChunks = 5

var toneIntros = map[Tone]string{
	ToneTutor:    "You are a patient, encouraging tutor. Explain the concept from first principles so a student meeting it for the first time can follow.",
	ToneConcise:  "You are an efficient tutor. Give the shortest correct explanation that fully answers the question.",
	ToneExam:     "You are an examiner's assistant. Answer in the style expected in a written exam: precise terminology, every mark-earning step shown.",
	ToneSocratic: "You are a Socratic tutor. Work toward the answer through the questions a student should ask themselves, then state the resolution clearly.",
}

// Options configure prompt construction.
type Options struct {
	Tone              Tone
	IncludeSteps      bool
	IncludeConfidence bool
}

// Build renders the question, optional retrieved context, and
// response-format instructions into a single prompt. Deterministic
// given its inputs.
func Build(question string, context []model.ContextSnippet, opts Options) string {
	intro, ok := toneIntros[opts.Tone]
	if !ok {
		intro = toneIntros[ToneTutor]
	}

	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n\n")

	if len(context) > 0 {
		b.WriteString("Reference material (most relevant first):\n")
		n := len(context)
		if n > MaxContextChunks {
			n = MaxContextChunks
		}
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "--- Reference %d (relevance %.2f) ---\n%s\n", i+1, context[i].Score, context[i].Text)
		}
		b.WriteString("\nGround your answer in the reference material where it applies.\n\n")
	} else {
		b.WriteString("No reference material was found for this question. Answer from general knowledge and do not invent citations or sources.\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(schemaBlock(opts))

	return b.String()
}

// BuildFollowUp renders a follow-up prompt that carries the prior
// answer for continuity. Same output contract as Build.
func BuildFollowUp(question, priorQuestion, priorAnswer string, opts Options) string {
	intro, ok := toneIntros[opts.Tone]
	if !ok {
		intro = toneIntros[ToneTutor]
	}

	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n\nThe student previously asked: ")
	b.WriteString(priorQuestion)
	b.WriteString("\nYou answered: ")
	b.WriteString(priorAnswer)
	b.WriteString("\n\nTheir follow-up question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer the follow-up in the context of the prior exchange.\n\n")
	b.WriteString(schemaBlock(opts))

	return b.String()
}

func schemaBlock(opts Options) string {
	var fields []string
	if opts.IncludeSteps {
		fields = append(fields, `"steps": ["<each solution step as its own string>"]`)
	}
	fields = append(fields, `"final_answer": "<the complete final answer>"`)
	if opts.IncludeConfidence {
		fields = append(fields, `"confidence": <0.0-1.0>`)
	}

	return "Respond with a single valid JSON object and nothing else:\n{" +
		strings.Join(fields, ", ") + "}"
}
