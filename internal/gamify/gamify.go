// Package gamify notifies the streak/points service when a user gets
// an answer. Tracking is a side effect of the answer pipeline; failures
// are logged and never propagated.
package gamify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edustack/doubtsolver/internal/config"
)

// Tracker records solve events for a user.
type Tracker interface {
	RecordSolve(ctx context.Context, userID string)
}

// NewTracker creates a Tracker from config. Without a webhook URL the
// no-op tracker is returned.
func NewTracker(cfg config.GamifyConfig) Tracker {
	if cfg.WebhookURL == "" {
		return noopTracker{}
	}
	return &webhookTracker{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type noopTracker struct{}

func (noopTracker) RecordSolve(context.Context, string) {}

type webhookTracker struct {
	url    string
	client *http.Client
}

func (t *webhookTracker) RecordSolve(ctx context.Context, userID string) {
	if err := t.post(ctx, userID); err != nil {
		zap.L().Warn("gamify: record solve failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (t *webhookTracker) post(ctx context.Context, userID string) error {
	body, err := json.Marshal(map[string]string{
		"user_id": userID,
		"event":   "doubt_solved",
	})
	if err != nil {
		return eris.Wrap(err, "gamify: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "gamify: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "gamify: webhook call")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(resp.Body)
		return eris.Errorf("gamify: webhook returned %d: %s", resp.StatusCode, string(payload))
	}
	return nil
}
