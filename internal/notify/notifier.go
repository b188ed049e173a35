package notify

import (
	"context"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
)

// Summary is the formatted payload handed to every channel for one
// notification fan-out.
type Summary struct {
	MonitorID   uint
	MonitorName string
	Status      string
	Glyph       string
	Label       string
	Message     string
	At          time.Time
}

// Notifier is the capability implemented once per channel type. Delivery
// retry, if a channel wants it, is the channel's own concern; the router
// never retries.
type Notifier interface {
	// Type returns the channel type identifier (e.g. "slack", "email").
	Type() string

	// Send delivers one notification.
	Send(ctx context.Context, summary Summary) error

	// Validate checks whether the channel configuration is usable.
	Validate() error
}

// statusGlyph maps check and incident statuses to a display glyph and
// label. Purely cosmetic; unknown statuses get a neutral marker.
func statusGlyph(status string) (string, string) {
	switch status {
	case "up", models.IncidentResolved:
		return "✅", "UP"
	case "down", models.IncidentOpen:
		return "🔴", "DOWN"
	case "degraded", models.IncidentMitigated:
		return "🟡", "DEGRADED"
	case models.IncidentInvestigating:
		return "🔍", "INVESTIGATING"
	default:
		return "⚪", "UNKNOWN"
	}
}
