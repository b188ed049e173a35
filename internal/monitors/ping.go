package monitors

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
)

type PingAdapter struct{}

func (a *PingAdapter) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	var cfg types.PingConfig
	if err := decodeConfig(monitor, &cfg); err != nil {
		return types.CheckOutcome{}, err
	}

	if cfg.Host == "" {
		return types.CheckOutcome{}, fmt.Errorf("%w: ping check requires host", ErrInvalidConfig)
	}

	count := cfg.Count
	if count <= 0 {
		count = 1
	}

	pinger, err := probing.NewPinger(cfg.Host)
	if err != nil {
		return types.CheckOutcome{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	pinger.Count = count
	// Unprivileged UDP ping so the process does not need CAP_NET_RAW.
	pinger.SetPrivileged(false)
	if deadline, ok := ctx.Deadline(); ok {
		pinger.Timeout = time.Until(deadline)
	}

	start := time.Now()
	if err := pinger.RunWithContext(ctx); err != nil {
		return down(start, "ping %s: %v", cfg.Host, err), nil
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return down(start, "ping %s: no reply to %d packet(s)", cfg.Host, count), nil
	}

	outcome := up(start)
	outcome.LatencyMs = stats.AvgRtt.Milliseconds()
	outcome.Meta = map[string]interface{}{
		"packets_sent": stats.PacketsSent,
		"packets_recv": stats.PacketsRecv,
	}
	return outcome, nil
}
