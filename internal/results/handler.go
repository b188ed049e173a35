package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spyglass-dev/spyglass/internal/incidents"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/realtime"
	"github.com/spyglass-dev/spyglass/internal/store"
	"github.com/spyglass-dev/spyglass/internal/types"
)

// IncidentSink is the incident manager as seen by the handler.
type IncidentSink interface {
	HandleResult(ref types.MonitorRef, outcome types.CheckOutcome) (incidents.Transition, error)
}

// ChangeNotifier is the notification router's check-driven entry point.
type ChangeNotifier interface {
	NotifyChange(ref types.MonitorRef, outcome types.CheckOutcome, previous *string)
}

// Options tweaks handling of one result.
type Options struct {
	// Suppressed overrides the maintenance-window lookup when set.
	Suppressed *bool
}

// Handler is the single entry point for raw check results, from scheduled
// checks, manual runs and heartbeat pushes alike. It persists the result,
// applies maintenance suppression, and forwards to the incident manager
// and notification router.
type Handler struct {
	store      store.Store
	suppressor store.Suppressor
	incidents  IncidentSink
	notifier   ChangeNotifier
	publisher  realtime.Publisher

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewHandler(st store.Store, suppressor store.Suppressor, sink IncidentSink, notifier ChangeNotifier, publisher realtime.Publisher) *Handler {
	return &Handler{
		store:      st,
		suppressor: suppressor,
		incidents:  sink,
		notifier:   notifier,
		publisher:  publisher,
		locks:      make(map[uint]*sync.Mutex),
	}
}

func (h *Handler) monitorLock(monitorID uint) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	lock, ok := h.locks[monitorID]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[monitorID] = lock
	}
	return lock
}

// HandleResult records one check outcome. A result arriving for a monitor
// that was deleted mid-flight is dropped silently; cancellation is advisory
// and the race is expected.
func (h *Handler) HandleResult(ref types.MonitorRef, outcome types.CheckOutcome, opts *Options) (*models.CheckResult, error) {
	monitor, err := h.store.GetMonitor(ref.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Info("dropping result for deleted monitor", "monitor_id", ref.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("load monitor: %w", err)
	}

	suppressed := false
	if opts != nil && opts.Suppressed != nil {
		suppressed = *opts.Suppressed
	} else if h.suppressor != nil {
		suppressed, err = h.suppressor.IsSuppressed(ref.ID)
		if err != nil {
			slog.Error("maintenance lookup failed, treating as not suppressed", "monitor_id", ref.ID, "error", err)
			suppressed = false
		}
	}

	// The previous-status read and the persist below must not interleave
	// across concurrent results for the same monitor, or two checks could
	// see the same predecessor and both pass the change gate.
	lock := h.monitorLock(ref.ID)
	lock.Lock()
	defer lock.Unlock()

	// Previous status is read before the new result lands so the change
	// gate compares against the immediately preceding check.
	var previous *string
	if prev, err := h.store.LatestCheckResult(ref.ID); err != nil {
		slog.Error("failed to load previous result", "monitor_id", ref.ID, "error", err)
	} else if prev != nil {
		previous = &prev.Status
	}

	result := &models.CheckResult{
		MonitorID: ref.ID,
		Status:    string(outcome.Status),
		LatencyMs: outcome.LatencyMs,
		Message:   outcome.Message,
		CheckedAt: outcome.CheckedAt,
	}

	if len(outcome.Meta) > 0 {
		meta, err := json.Marshal(outcome.Meta)
		if err != nil {
			slog.Error("failed to encode result meta", "monitor_id", ref.ID, "error", err)
		} else {
			result.Meta = meta
		}
	}

	persistErr := h.store.CreateCheckResult(result)
	if persistErr != nil {
		slog.Error("failed to persist check result", "monitor_id", ref.ID, "error", persistErr)
	}

	// Realtime consumers get the event even under suppression; maintenance
	// hides alerting, not history.
	h.publisher.Publish(realtime.TopicMonitorResult, map[string]interface{}{
		"monitor_id":   ref.ID,
		"monitor_name": ref.Name,
		"status":       outcome.Status,
		"latency_ms":   outcome.LatencyMs,
		"message":      outcome.Message,
		"checked_at":   outcome.CheckedAt,
		"suppressed":   suppressed,
	})

	if persistErr != nil {
		// Incident and notification state key off persisted history; skip
		// them for this cycle rather than act on state we failed to write.
		return nil, fmt.Errorf("persist check result: %w", persistErr)
	}

	if suppressed {
		slog.Debug("monitor in maintenance, skipping incident and notification", "monitor_id", ref.ID)
		return result, nil
	}

	if monitor.CreateIncidents {
		if _, err := h.incidents.HandleResult(ref, outcome); err != nil {
			slog.Error("incident handling failed", "monitor_id", ref.ID, "error", err)
		}
	}

	h.notifier.NotifyChange(ref, outcome, previous)

	return result, nil
}
