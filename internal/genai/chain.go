package genai

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/embed"
	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/prompt"
	"github.com/edustack/doubtsolver/pkg/anthropic"
)

const defaultMaxTokens = 2048

// systemText frames every structured-answer request.
const systemText = "You are an expert academic tutor. Always respond with a single valid JSON object matching the requested schema. Include a mermaid_code field with a flowchart when a diagram would help, and a code field {\"language\",\"snippet\"} when code is part of the answer."

// askSchemaSuffix extends the base prompt contract with the full answer
// shape the pipeline persists.
const askSchemaSuffix = "\n\nUse this extended JSON shape:\n{\"explanation\": \"<prose explanation>\", \"steps\": [\"<step>\"], \"final_answer\": \"<answer>\", \"confidence\": <0.0-1.0>, \"meta\": {\"subject\": \"\", \"topic\": \"\", \"subtopic\": \"\", \"difficulty\": \"easy|medium|hard\", \"question_type\": \"\"}, \"follow_up_questions\": {\"easy\": \"\", \"medium\": \"\", \"challenge\": \"\"}, \"mermaid_code\": \"\", \"code\": {\"language\": \"\", \"snippet\": \"\"}}"

// Chain is a Backend that tries an ordered list of model identifiers
// against one transport. Each model failure is logged and the next
// model tried; total exhaustion yields the fixed degraded answer, never
// an error.
type Chain struct {
	client    anthropic.Client
	models    []string
	maxTokens int64
	tone      prompt.Tone
	embedder  embed.Provider
}

// NewChain creates a generation chain from config. The pseudo embedder
// backs GenerateEmbedding because the message API has no native
// embedding capability.
func NewChain(client anthropic.Client, cfg config.AnthropicConfig) *Chain {
	models := append([]string{cfg.Model}, cfg.FallbackModels...)
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Chain{
		client:    client,
		models:    models,
		maxTokens: maxTokens,
		tone:      prompt.ToneTutor,
		embedder:  embed.NewPseudo(0),
	}
}

// AskWithContext builds the full answer prompt and runs it through the
// model chain. The returned answer is always structurally valid.
func (c *Chain) AskWithContext(ctx context.Context, question string, snippets []model.ContextSnippet) (*Answer, error) {
	p := prompt.Build(question, snippets, prompt.Options{
		Tone:              c.tone,
		IncludeSteps:      true,
		IncludeConfidence: true,
	}) + askSchemaSuffix

	raw, err := c.askModels(ctx, p)
	if err != nil {
		zap.L().Error("genai: all models failed, returning fallback answer", zap.Error(err))
		return FallbackAnswer(question), nil
	}

	ans := ParseAnswer(raw)
	ans.Confidence = model.NormalizeConfidence(ans.Confidence)
	return ans, nil
}

// AskFollowUp answers a follow-up question in the context of a prior
// exchange. Same degradation behavior as AskWithContext.
func (c *Chain) AskFollowUp(ctx context.Context, question, priorQuestion, priorAnswer string) (*Answer, error) {
	p := prompt.BuildFollowUp(question, priorQuestion, priorAnswer, prompt.Options{
		Tone:              c.tone,
		IncludeSteps:      true,
		IncludeConfidence: true,
	}) + askSchemaSuffix

	raw, err := c.askModels(ctx, p)
	if err != nil {
		zap.L().Error("genai: all models failed, returning fallback answer", zap.Error(err))
		return FallbackAnswer(question), nil
	}

	ans := ParseAnswer(raw)
	ans.Confidence = model.NormalizeConfidence(ans.Confidence)
	return ans, nil
}

// AskRaw sends a prepared prompt through the model chain and returns
// the backend's raw text.
func (c *Chain) AskRaw(ctx context.Context, p string) (string, error) {
	return c.askModels(ctx, p)
}

// GenerateEmbedding produces a deterministic pseudo-embedding. This is
// documented placeholder behavior, not a production embedding.
func (c *Chain) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return c.embedder.Embed(ctx, text)
}

func (c *Chain) askModels(ctx context.Context, p string) (string, error) {
	var lastErr error
	for _, m := range c.models {
		if m == "" {
			continue
		}
		resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     m,
			MaxTokens: c.maxTokens,
			System:    systemText,
			Messages:  []anthropic.Message{{Role: "user", Content: p}},
		})
		if err != nil {
			zap.L().Warn("genai: model failed, trying next",
				zap.String("model", m),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		return resp.Text(), nil
	}
	if lastErr == nil {
		lastErr = eris.New("genai: no models configured")
	}
	return "", lastErr
}
