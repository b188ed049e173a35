package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spyglass-dev/spyglass/internal/metrics"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/store"
	"github.com/spyglass-dev/spyglass/internal/types"
)

const sendTimeout = 10 * time.Second

// Router fans notifications out to a monitor's configured channels. Every
// dispatch runs concurrently and is isolated: one channel failing, timing
// out or panicking never blocks or fails the others.
type Router struct {
	store   store.Store
	metrics *metrics.Metrics

	// build is swappable for tests.
	build func(channel models.NotificationChannel) (Notifier, error)
}

func NewRouter(st store.Store, m *metrics.Metrics) *Router {
	return &Router{store: st, metrics: m, build: BuildNotifier}
}

// NotifyChange is the check-driven entry point. It dispatches only when
// the status differs from the previous result, or when this is the
// monitor's first-ever check — repeated "still down" results append
// incident events instead of re-alerting.
func (r *Router) NotifyChange(ref types.MonitorRef, outcome types.CheckOutcome, previous *string) {
	if previous != nil && *previous == string(outcome.Status) {
		slog.Debug("status unchanged, skipping notification",
			"monitor_id", ref.ID,
			"status", outcome.Status,
		)
		return
	}

	r.Notify(ref, string(outcome.Status), outcome.Message)
}

// Notify dispatches unconditionally. Manual incident overrides use it
// directly so they are always announced.
func (r *Router) Notify(ref types.MonitorRef, status, message string) {
	channels, err := r.store.ChannelsForMonitor(ref.ID)
	if err != nil {
		slog.Error("failed to load notification channels", "monitor_id", ref.ID, "error", err)
		return
	}

	if len(channels) == 0 {
		slog.Debug("monitor has no notification channels", "monitor_id", ref.ID)
		return
	}

	glyph, label := statusGlyph(status)
	summary := Summary{
		MonitorID:   ref.ID,
		MonitorName: ref.Name,
		Status:      status,
		Glyph:       glyph,
		Label:       label,
		Message:     message,
		At:          time.Now(),
	}

	var wg sync.WaitGroup
	for _, channel := range channels {
		wg.Add(1)
		go func(channel models.NotificationChannel) {
			defer wg.Done()
			r.dispatch(channel, summary)
		}(channel)
	}
	wg.Wait()
}

// dispatch sends to one channel, absorbing every failure mode.
func (r *Router) dispatch(channel models.NotificationChannel, summary Summary) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("notifier panicked", "channel_type", channel.Type, "channel_id", channel.ID, "panic", rec)
			r.metrics.NotifyFailures.WithLabelValues(channel.Type).Inc()
		}
	}()

	notifier, err := r.build(channel)
	if err != nil {
		slog.Error("failed to build notifier", "channel_type", channel.Type, "channel_id", channel.ID, "error", err)
		r.metrics.NotifyFailures.WithLabelValues(channel.Type).Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := notifier.Send(ctx, summary); err != nil {
		slog.Error("notification send failed",
			"channel_type", channel.Type,
			"channel_id", channel.ID,
			"monitor_id", summary.MonitorID,
			"error", err,
		)
		r.metrics.NotifyFailures.WithLabelValues(channel.Type).Inc()
		return
	}

	slog.Info("notification sent",
		"channel_type", channel.Type,
		"channel_id", channel.ID,
		"monitor_id", summary.MonitorID,
		"status", summary.Status,
	)
}
