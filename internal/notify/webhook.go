package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier POSTs the raw summary to an arbitrary endpoint.
type WebhookNotifier struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
}

func (w *WebhookNotifier) Type() string { return "webhook" }

func (w *WebhookNotifier) Validate() error {
	if w.URL == "" {
		return errors.New("webhook: url is required")
	}
	return nil
}

func (w *WebhookNotifier) Send(ctx context.Context, summary Summary) error {
	method := w.Method
	if method == "" {
		method = http.MethodPost
	}

	payload := map[string]interface{}{
		"monitor_id":   summary.MonitorID,
		"monitor_name": summary.MonitorName,
		"status":       summary.Status,
		"message":      summary.Message,
		"timestamp":    summary.At.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
