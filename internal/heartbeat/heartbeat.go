package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spyglass-dev/spyglass/internal/config"
	"github.com/spyglass-dev/spyglass/internal/metrics"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/realtime"
	"github.com/spyglass-dev/spyglass/internal/results"
	"github.com/spyglass-dev/spyglass/internal/store"
	"github.com/spyglass-dev/spyglass/internal/types"
)

// ResultSink matches the result handler entry point.
type ResultSink interface {
	HandleResult(ref types.MonitorRef, outcome types.CheckOutcome, opts *results.Options) (*models.CheckResult, error)
}

// Service handles inbound heartbeat pushes and runs the lateness sweep
// for passive monitors.
type Service struct {
	store     store.Store
	sink      ResultSink
	publisher realtime.Publisher
	metrics   *metrics.Metrics
	cfg       config.HeartbeatConfig

	// now is swappable for tests.
	now func() time.Time

	mu   sync.Mutex
	late map[uint]bool // monitor ID -> flagged late last sweep
}

func NewService(st store.Store, sink ResultSink, publisher realtime.Publisher, m *metrics.Metrics, cfg config.HeartbeatConfig) *Service {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 1.2
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10
	}

	return &Service{
		store:     st,
		sink:      sink,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
		late:      make(map[uint]bool),
	}
}

// HandlePush records an inbound heartbeat: bumps the token's last-seen
// timestamp (monotonically) and feeds a synthetic up result straight into
// the result handler, bypassing the scheduler and executor.
func (s *Service) HandlePush(token, message string) (*models.Monitor, error) {
	hb, err := s.store.GetHeartbeatToken(token)
	if err != nil {
		return nil, fmt.Errorf("lookup heartbeat token: %w", err)
	}

	monitor, err := s.store.GetMonitor(hb.MonitorID)
	if err != nil {
		return nil, fmt.Errorf("lookup monitor: %w", err)
	}

	now := s.now()

	if err := s.store.UpdateHeartbeatLastSeen(hb.MonitorID, now); err != nil {
		return nil, fmt.Errorf("update heartbeat: %w", err)
	}

	s.metrics.HeartbeatsReceived.Inc()

	if message == "" {
		message = "heartbeat received"
	}

	outcome := types.CheckOutcome{
		Status:    types.StatusUp,
		Message:   message,
		CheckedAt: now,
	}

	ref := types.MonitorRef{ID: monitor.ID, Name: monitor.Name}
	if _, err := s.sink.HandleResult(ref, outcome, nil); err != nil {
		slog.Error("heartbeat result handling failed", "monitor_id", monitor.ID, "error", err)
	}

	return monitor, nil
}

// Run executes the lateness sweep until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.cfg.SweepInterval) * time.Second)
	defer ticker.Stop()

	slog.Info("heartbeat sweep started",
		"interval_s", s.cfg.SweepInterval,
		"grace", s.cfg.GracePeriod,
		"create_incidents", s.cfg.CreateIncidents,
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// pushSettings decodes the monitor's push config. A missing or malformed
// config yields the zero value, leaving the token and global defaults in
// charge.
func pushSettings(monitor *models.Monitor) types.PushConfig {
	var cfg types.PushConfig
	if len(monitor.Config) > 0 {
		if err := json.Unmarshal(monitor.Config, &cfg); err != nil {
			slog.Warn("invalid push config, using defaults", "monitor_id", monitor.ID, "error", err)
		}
	}
	return cfg
}

// allowedSilence is how long the token may stay quiet before it counts as
// late: cadence × grace. The token's cadence wins; the monitor's push config
// supplies it when the token has none, and may override the global grace
// multiplier per monitor. Zero means the token cannot be judged.
func (s *Service) allowedSilence(monitor *models.Monitor, token models.HeartbeatToken) time.Duration {
	pc := pushSettings(monitor)

	every := token.HeartbeatEvery
	if every <= 0 {
		every = pc.HeartbeatEvery
	}
	if every <= 0 {
		return 0
	}

	grace := s.cfg.GracePeriod
	if pc.GracePeriod > 0 {
		grace = pc.GracePeriod
	}

	return time.Duration(float64(every)*grace) * time.Second
}

// Sweep scans all heartbeat tokens once and flags the late ones. A token
// is late when now - lastHeartbeat exceeds its allowed silence. Tokens
// that never pushed are left alone.
func (s *Service) Sweep() {
	tokens, err := s.store.ListHeartbeatTokens()
	if err != nil {
		slog.Error("heartbeat sweep failed to list tokens", "error", err)
		return
	}

	now := s.now()
	lateCount := 0

	for _, token := range tokens {
		if token.LastHeartbeat == nil {
			continue
		}

		monitor, err := s.store.GetMonitor(token.MonitorID)
		if err != nil {
			slog.Error("heartbeat token for unknown monitor", "monitor_id", token.MonitorID, "error", err)
			continue
		}

		allowed := s.allowedSilence(monitor, token)
		if allowed <= 0 {
			continue
		}

		isLate := now.Sub(*token.LastHeartbeat) > allowed

		if isLate {
			lateCount++
		}

		s.mu.Lock()
		wasLate := s.late[token.MonitorID]
		s.late[token.MonitorID] = isLate
		s.mu.Unlock()

		// Act on the crossing only, so a token stuck late does not spam
		// a synthetic down every sweep; the incident stays open anyway.
		if isLate && !wasLate {
			s.reportLate(monitor, token, allowed, now)
		}
	}

	s.metrics.HeartbeatsLate.Set(float64(lateCount))
}

func (s *Service) reportLate(monitor *models.Monitor, token models.HeartbeatToken, allowed time.Duration, now time.Time) {
	overdue := now.Sub(*token.LastHeartbeat)
	message := fmt.Sprintf("no heartbeat for %s (allowed %s)", overdue.Round(time.Second), allowed)

	slog.Warn("heartbeat late", "monitor_id", monitor.ID, "name", monitor.Name, "overdue", overdue)

	s.publisher.Publish(realtime.TopicHeartbeatLate, map[string]interface{}{
		"monitor_id":     monitor.ID,
		"monitor_name":   monitor.Name,
		"last_heartbeat": token.LastHeartbeat,
		"message":        message,
	})

	if !s.cfg.CreateIncidents {
		return
	}

	outcome := types.CheckOutcome{
		Status:    types.StatusDown,
		Message:   message,
		CheckedAt: now,
	}

	ref := types.MonitorRef{ID: monitor.ID, Name: monitor.Name}
	if _, err := s.sink.HandleResult(ref, outcome, nil); err != nil {
		slog.Error("late-heartbeat result handling failed", "monitor_id", monitor.ID, "error", err)
	}
}

// IsLate reports whether one token is currently past its grace window.
func (s *Service) IsLate(token models.HeartbeatToken) bool {
	if token.LastHeartbeat == nil {
		return false
	}

	allowed := time.Duration(float64(token.HeartbeatEvery)*s.cfg.GracePeriod) * time.Second
	if monitor, err := s.store.GetMonitor(token.MonitorID); err == nil {
		allowed = s.allowedSilence(monitor, token)
	}
	if allowed <= 0 {
		return false
	}

	return s.now().Sub(*token.LastHeartbeat) > allowed
}
