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

const (
	colorRed    = 16711680 // #FF0000
	colorGreen  = 65280    // #00FF00
	colorOrange = 16753920 // #FFA500

	senderName = "Spyglass Monitor"
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Timestamp   string         `json:"timestamp"`
}

type discordWebhookRequest struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordNotifier posts an embed to a Discord webhook.
type DiscordNotifier struct {
	WebhookURL string `json:"webhook_url"`
}

func (d *DiscordNotifier) Type() string { return "discord" }

func (d *DiscordNotifier) Validate() error {
	if d.WebhookURL == "" {
		return errors.New("discord: webhook_url is required")
	}
	return nil
}

func (d *DiscordNotifier) Send(ctx context.Context, summary Summary) error {
	color := colorOrange
	switch summary.Label {
	case "DOWN":
		color = colorRed
	case "UP":
		color = colorGreen
	}

	payload := discordWebhookRequest{
		Username: senderName,
		Embeds: []discordEmbed{
			{
				Title:       fmt.Sprintf("%s **%s is %s**", summary.Glyph, summary.MonitorName, summary.Label),
				Description: summary.Message,
				Color:       color,
				Fields: []discordField{
					{Name: "Monitor", Value: summary.MonitorName, Inline: true},
					{Name: "Status", Value: summary.Label, Inline: true},
				},
				Timestamp: summary.At.Format(time.RFC3339),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord: webhook returned status %d", resp.StatusCode)
	}

	return nil
}
