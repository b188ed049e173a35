package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []slackField `json:"fields"`
	Timestamp int64        `json:"ts"`
}

type slackWebhookRequest struct {
	Username    string            `json:"username"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

// SlackNotifier posts an attachment to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string `json:"webhook_url"`
}

func (s *SlackNotifier) Type() string { return "slack" }

func (s *SlackNotifier) Validate() error {
	if s.WebhookURL == "" {
		return errors.New("slack: webhook_url is required")
	}
	return nil
}

func (s *SlackNotifier) Send(ctx context.Context, summary Summary) error {
	color := "warning"
	switch summary.Label {
	case "DOWN":
		color = "danger"
	case "UP":
		color = "good"
	}

	payload := slackWebhookRequest{
		Username: senderName,
		Text:     fmt.Sprintf("%s *%s is %s*", summary.Glyph, summary.MonitorName, summary.Label),
		Attachments: []slackAttachment{
			{
				Color: color,
				Title: summary.MonitorName,
				Text:  summary.Message,
				Fields: []slackField{
					{Title: "Status", Value: summary.Label, Short: true},
				},
				Timestamp: summary.At.Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slack: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack: send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack: webhook returned status %d", resp.StatusCode)
	}

	return nil
}
