package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edustack/doubtsolver/internal/model"
)

func TestBuildDeterministic(t *testing.T) {
	ctx := []model.ContextSnippet{{Text: "Newton's second law: F = ma.", Score: 0.88}}
	opts := Options{Tone: ToneTutor, IncludeSteps: true, IncludeConfidence: true}

	a := Build("Why does force equal mass times acceleration?", ctx, opts)
	b := Build("Why does force equal mass times acceleration?", ctx, opts)
	assert.Equal(t, a, b)
}

func TestBuildWithContext(t *testing.T) {
	ctx := []model.ContextSnippet{
		{Text: "Photosynthesis converts light energy.", Score: 0.91},
		{Text: "Chlorophyll absorbs red and blue light.", Score: 0.77},
	}
	p := Build("What is photosynthesis?", ctx, Options{Tone: ToneConcise, IncludeSteps: true})

	assert.Contains(t, p, "Reference 1 (relevance 0.91)")
	assert.Contains(t, p, "Reference 2 (relevance 0.77)")
	assert.Contains(t, p, "Question: What is photosynthesis?")
	assert.Contains(t, p, `"steps"`)
	assert.Contains(t, p, `"final_answer"`)
	assert.NotContains(t, p, `"confidence"`)
	assert.NotContains(t, p, "general knowledge")
}

func TestBuildEmptyContext(t *testing.T) {
	p := Build("What is entropy?", nil, Options{Tone: ToneExam, IncludeConfidence: true})

	assert.Contains(t, p, "general knowledge")
	assert.Contains(t, p, "do not invent citations")
	assert.Contains(t, p, `"confidence"`)
	assert.NotContains(t, p, `"steps"`)
}

func TestBuildCapsContext(t *testing.T) {
	var ctx []model.ContextSnippet
	for i := 0; i < 10; i++ {
		ctx = append(ctx, model.ContextSnippet{Text: "snippet", Score: 0.9})
	}
	p := Build("q", ctx, Options{Tone: ToneTutor})
	assert.Equal(t, MaxContextChunks, strings.Count(p, "--- Reference "))
}

func TestBuildUnknownToneFallsBack(t *testing.T) {
	p := Build("q", nil, Options{Tone: Tone("pirate")})
	assert.Contains(t, p, "patient, encouraging tutor")
}

func TestToneVariants(t *testing.T) {
	seen := make(map[string]bool)
	for _, tone := range []Tone{ToneTutor, ToneConcise, ToneExam, ToneSocratic} {
		p := Build("q", nil, Options{Tone: tone})
		firstLine := strings.SplitN(p, "\n", 2)[0]
		assert.False(t, seen[firstLine], "tone %s not distinct", tone)
		seen[firstLine] = true
	}
}

func TestBuildFollowUp(t *testing.T) {
	p := BuildFollowUp("Why is it reversible?", "What is an isothermal process?", "A process at constant temperature.", Options{Tone: ToneTutor, IncludeSteps: true})

	assert.Contains(t, p, "previously asked: What is an isothermal process?")
	assert.Contains(t, p, "You answered: A process at constant temperature.")
	assert.Contains(t, p, "follow-up question: Why is it reversible?")
	assert.Contains(t, p, `"final_answer"`)
}
