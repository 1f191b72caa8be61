package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/txpipe/chainstream/internal/model"
)

// Webhook POSTs each event's JSON projection to a configured URL, using
// hashicorp/go-retryablehttp for HTTP-level retry/backoff against flaky
// receivers.
type Webhook struct {
	URL     string
	Headers map[string]string

	client *retryablehttp.Client
}

// NewWebhook builds a Webhook sink with sane retry defaults.
func NewWebhook(url string, headers map[string]string) *Webhook {
	client := retryablehttp.NewClient()
	client.RetryMax = 5
	client.Logger = nil
	return &Webhook{URL: url, Headers: headers, client: client}
}

func (w *Webhook) Deliver(ctx context.Context, event model.ChainEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sink/webhook: marshal event: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("sink/webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sink/webhook: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sink/webhook: upstream returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *Webhook) Close() error {
	w.client.HTTPClient.CloseIdleConnections()
	return nil
}
