package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/httpretry"
)

// WebhookDeliverer POSTs each payload as JSON to a push or email gateway.
type WebhookDeliverer struct {
	url    string
	client httpretry.HTTPDoer
}

// NewWebhookDeliverer delivers to url through client. A nil client gets a
// retrying client with the given number of retries.
func NewWebhookDeliverer(url string, client httpretry.HTTPDoer, retries int) *WebhookDeliverer {
	if client == nil {
		client = httpretry.NewRetryClient(nil, retries)
	}
	return &WebhookDeliverer{url: url, client: client}
}

// Deliver sends p. Any non-2xx response is an error so the delivery worker
// requeues the payload.
func (d *WebhookDeliverer) Deliver(ctx context.Context, p domain.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id, ok := p.Metadata["message_id"].(string); ok {
		req.Header.Set("Idempotency-Key", id)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delivery gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
