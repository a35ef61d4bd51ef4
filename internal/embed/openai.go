package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/resilience"
)

const defaultEmbeddingDimension = 1536

// OpenAI is an embeddings client for any OpenAI-compatible endpoint.
// Requests are rate limited and retried on transient failures. Repeated
// exhausted retry cycles open a circuit breaker; while it is open,
// Embed serves deterministic pseudo embeddings instead of hitting the
// endpoint.
type OpenAI struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
	fallback  *Pseudo
}

// NewOpenAI creates an OpenAI-compatible embeddings client.
func NewOpenAI(cfg config.EmbeddingConfig) *OpenAI {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = defaultEmbeddingDimension
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	return &OpenAI{
		baseURL:   baseURL,
		apiKey:    cfg.Key,
		model:     model,
		dimension: dim,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		retry:     resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("embed: provider circuit state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
		fallback: NewPseudo(dim),
	}
}

// Dimension returns the embedding vector length.
func (o *OpenAI) Dimension() int {
	return o.dimension
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed sends text to the embeddings endpoint and returns the vector.
// While the circuit is open it returns a pseudo embedding of the same
// dimension without contacting the endpoint.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "embed: rate limiter")
	}

	vec, err := resilience.ExecuteVal(ctx, o.breaker, func(ctx context.Context) ([]float32, error) {
		return resilience.DoVal(ctx, o.retry, func(ctx context.Context) ([]float32, error) {
			return o.embedOnce(ctx, text)
		})
	})
	if eris.Is(err, resilience.ErrCircuitOpen) {
		zap.L().Warn("embed: provider circuit open, serving pseudo embedding")
		return o.fallback.Embed(ctx, text)
	}
	return vec, err
}

func (o *OpenAI) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: o.model, Input: []string{text}})
	if err != nil {
		return nil, eris.Wrap(err, "embed: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "embed: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "embed: API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "embed: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("embed: API returned %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "embed: unmarshal response")
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, eris.New("embed: empty embedding in response")
	}

	return parsed.Data[0].Embedding, nil
}
