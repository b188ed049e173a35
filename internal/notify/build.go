package notify

import (
	"encoding/json"
	"fmt"

	"github.com/spyglass-dev/spyglass/internal/models"
)

// BuildNotifier constructs the channel-type implementation from a stored
// channel definition.
func BuildNotifier(channel models.NotificationChannel) (Notifier, error) {
	var notifier Notifier

	switch channel.Type {
	case "webhook":
		notifier = &WebhookNotifier{}
	case "slack":
		notifier = &SlackNotifier{}
	case "discord":
		notifier = &DiscordNotifier{}
	case "telegram":
		notifier = &TelegramNotifier{}
	case "email":
		notifier = &EmailNotifier{}
	default:
		return nil, fmt.Errorf("unknown channel type %q", channel.Type)
	}

	if err := json.Unmarshal(channel.Config, notifier); err != nil {
		return nil, fmt.Errorf("decode %s channel config: %w", channel.Type, err)
	}

	if err := notifier.Validate(); err != nil {
		return nil, err
	}

	return notifier, nil
}
