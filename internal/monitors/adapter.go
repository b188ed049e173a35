package monitors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
)

// ErrInvalidConfig marks malformed monitor configuration. Config errors are
// surfaced synchronously to the caller and never become incidents.
var ErrInvalidConfig = errors.New("invalid monitor config")

// Adapter executes one check for a monitor of its kind. A returned error
// wrapping ErrInvalidConfig means the monitor definition itself is broken;
// any other failure mode must be expressed as a down outcome, not an error.
type Adapter interface {
	Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error)
}

// Registry is the closed kind -> adapter table.
type Registry map[types.MonitorKind]Adapter

// NewRegistry builds adapters for every active monitor kind. Push monitors
// are passive and deliberately absent: their results arrive via webhook.
func NewRegistry(browser *BrowserRunner) Registry {
	return Registry{
		types.KindHTTP:        &HTTPAdapter{},
		types.KindTCP:         &TCPAdapter{},
		types.KindPing:        &PingAdapter{},
		types.KindDNS:         &DNSAdapter{},
		types.KindCertificate: &CertificateAdapter{},
		types.KindDatabase:    &DatabaseAdapter{},
		types.KindDocker:      &DockerAdapter{},
		types.KindGRPC:        &GRPCAdapter{},
		types.KindBrowser:     browser,
	}
}

// Lookup returns the adapter for a kind, or an ErrInvalidConfig-wrapped
// error for unknown or passive kinds.
func (r Registry) Lookup(kind types.MonitorKind) (Adapter, error) {
	adapter, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for monitor kind %q", ErrInvalidConfig, kind)
	}
	return adapter, nil
}

func decodeConfig(monitor *models.Monitor, out interface{}) error {
	if err := json.Unmarshal(monitor.Config, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func up(start time.Time) types.CheckOutcome {
	return types.CheckOutcome{
		Status:    types.StatusUp,
		LatencyMs: time.Since(start).Milliseconds(),
		CheckedAt: time.Now(),
	}
}

func down(start time.Time, format string, args ...interface{}) types.CheckOutcome {
	return types.CheckOutcome{
		Status:    types.StatusDown,
		LatencyMs: time.Since(start).Milliseconds(),
		Message:   fmt.Sprintf(format, args...),
		CheckedAt: time.Now(),
	}
}

func degraded(start time.Time, format string, args ...interface{}) types.CheckOutcome {
	return types.CheckOutcome{
		Status:    types.StatusDegraded,
		LatencyMs: time.Since(start).Milliseconds(),
		Message:   fmt.Sprintf(format, args...),
		CheckedAt: time.Now(),
	}
}
