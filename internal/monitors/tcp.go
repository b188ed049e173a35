package monitors

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
)

type TCPAdapter struct{}

func (a *TCPAdapter) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	var cfg types.TCPConfig
	if err := decodeConfig(monitor, &cfg); err != nil {
		return types.CheckOutcome{}, err
	}

	if cfg.Host == "" || cfg.Port == 0 {
		return types.CheckOutcome{}, fmt.Errorf("%w: tcp check requires host and port", ErrInvalidConfig)
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	start := time.Now()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return down(start, "tcp dial %s: %v", addr, err), nil
	}
	conn.Close()

	return up(start), nil
}
