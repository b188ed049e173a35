package monitors

import (
	"context"
	"fmt"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCAdapter probes the standard gRPC health checking service.
type GRPCAdapter struct{}

func (a *GRPCAdapter) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	var cfg types.GRPCConfig
	if err := decodeConfig(monitor, &cfg); err != nil {
		return types.CheckOutcome{}, err
	}

	if cfg.Target == "" {
		return types.CheckOutcome{}, fmt.Errorf("%w: grpc check requires target", ErrInvalidConfig)
	}

	conn, err := grpc.NewClient(cfg.Target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return types.CheckOutcome{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	defer conn.Close()

	start := time.Now()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: cfg.Service,
	})
	if err != nil {
		return down(start, "grpc health check %s: %v", cfg.Target, err), nil
	}

	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return down(start, "grpc service %q reported %s", cfg.Service, resp.Status.String()), nil
	}

	return up(start), nil
}
