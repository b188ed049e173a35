package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spyglass-dev/spyglass/internal/metrics"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/monitors"
	"github.com/spyglass-dev/spyglass/internal/types"
)

const defaultTimeout = 30 * time.Second

// Executor invokes exactly one protocol adapter per check under a hard
// deadline. Timeouts and adapter faults are normalized into down outcomes;
// the only error it ever returns is a config error, which the caller sees
// synchronously and which never enters the incident pipeline.
type Executor struct {
	registry monitors.Registry
	metrics  *metrics.Metrics
}

func New(registry monitors.Registry, m *metrics.Metrics) *Executor {
	return &Executor{registry: registry, metrics: m}
}

// Run executes the monitor's check once.
func (e *Executor) Run(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	adapter, err := e.registry.Lookup(types.MonitorKind(monitor.Kind))
	if err != nil {
		return types.CheckOutcome{}, err
	}

	timeout := defaultTimeout
	if monitor.Timeout > 0 {
		timeout = time.Duration(monitor.Timeout) * time.Second
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.metrics.ChecksInFlight.Inc()
	start := time.Now()

	outcome, err := e.safeExecute(checkCtx, adapter, monitor)

	elapsed := time.Since(start)
	e.metrics.ChecksInFlight.Dec()
	e.metrics.CheckDuration.WithLabelValues(monitor.Kind).Observe(elapsed.Seconds())

	if err != nil {
		if errors.Is(err, monitors.ErrInvalidConfig) {
			return types.CheckOutcome{}, err
		}
		// Any other adapter fault becomes a down result, never a crash.
		outcome = types.CheckOutcome{
			Status:    types.StatusDown,
			LatencyMs: elapsed.Milliseconds(),
			Message:   err.Error(),
			CheckedAt: time.Now(),
		}
	}

	if checkCtx.Err() == context.DeadlineExceeded && outcome.Status != types.StatusUp {
		outcome = types.CheckOutcome{
			Status:    types.StatusDown,
			LatencyMs: elapsed.Milliseconds(),
			Message:   fmt.Sprintf("timeout after %dms", timeout.Milliseconds()),
			CheckedAt: time.Now(),
		}
	}

	if outcome.CheckedAt.IsZero() {
		outcome.CheckedAt = time.Now()
	}

	e.metrics.ChecksTotal.WithLabelValues(monitor.Kind, string(outcome.Status)).Inc()

	return outcome, nil
}

// safeExecute converts an adapter panic into an error so one bad check can
// never take the process down.
func (e *Executor) safeExecute(ctx context.Context, adapter monitors.Adapter, monitor *models.Monitor) (outcome types.CheckOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("adapter panicked", "monitor_id", monitor.ID, "kind", monitor.Kind, "panic", r)
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()

	return adapter.Execute(ctx, monitor)
}
