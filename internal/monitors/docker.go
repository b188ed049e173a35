package monitors

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/client"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
)

// DockerAdapter checks that a container is running, and healthy when it
// defines a healthcheck.
type DockerAdapter struct{}

func (a *DockerAdapter) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	var cfg types.DockerConfig
	if err := decodeConfig(monitor, &cfg); err != nil {
		return types.CheckOutcome{}, err
	}

	if cfg.ContainerID == "" {
		return types.CheckOutcome{}, fmt.Errorf("%w: docker check requires container_id", ErrInvalidConfig)
	}

	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return types.CheckOutcome{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	defer cli.Close()

	start := time.Now()

	inspect, err := cli.ContainerInspect(ctx, cfg.ContainerID)
	if err != nil {
		return down(start, "inspect container %s: %v", cfg.ContainerID, err), nil
	}

	if inspect.State == nil || !inspect.State.Running {
		status := "unknown"
		if inspect.State != nil {
			status = inspect.State.Status
		}
		return down(start, "container %s is not running (state: %s)", cfg.ContainerID, status), nil
	}

	if inspect.State.Health != nil {
		switch inspect.State.Health.Status {
		case "healthy":
			// fall through to up
		case "starting":
			return degraded(start, "container %s healthcheck still starting", cfg.ContainerID), nil
		default:
			return down(start, "container %s is %s", cfg.ContainerID, inspect.State.Health.Status), nil
		}
	}

	outcome := up(start)
	outcome.Meta = map[string]interface{}{"container_status": inspect.State.Status}
	return outcome, nil
}
