package incidents

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spyglass-dev/spyglass/internal/metrics"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/realtime"
	"github.com/spyglass-dev/spyglass/internal/store"
	"github.com/spyglass-dev/spyglass/internal/types"
)

// Announcer delivers manual status-change notifications. The notification
// router implements it; manual overrides are always announced, bypassing
// the router's change gate.
type Announcer interface {
	Notify(ref types.MonitorRef, status, message string)
}

// Transition describes what the manager did with a result.
type Transition struct {
	Incident *models.Incident
	// Opened and Resolved are mutually exclusive; both false means either
	// an event was appended to an existing incident or nothing happened.
	Opened   bool
	Resolved bool
}

// Manager is the per-monitor incident state machine. All incident
// creation/resolution for one monitor runs under that monitor's lock, so
// concurrent down results (a scheduled tick racing a manual run) can never
// produce two active incidents.
type Manager struct {
	store     store.Store
	publisher realtime.Publisher
	announcer Announcer
	metrics   *metrics.Metrics

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewManager(st store.Store, publisher realtime.Publisher, m *metrics.Metrics) *Manager {
	return &Manager{
		store:     st,
		publisher: publisher,
		metrics:   m,
		locks:     make(map[uint]*sync.Mutex),
	}
}

// SetAnnouncer wires the notification router in after construction (the
// router and manager are built independently).
func (m *Manager) SetAnnouncer(a Announcer) {
	m.announcer = a
}

func (m *Manager) monitorLock(monitorID uint) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[monitorID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[monitorID] = lock
	}
	return lock
}

// HandleResult applies a check outcome to the monitor's incident state.
// Only down opens an incident and only up resolves one; degraded and
// unknown never touch incident state.
func (m *Manager) HandleResult(ref types.MonitorRef, outcome types.CheckOutcome) (Transition, error) {
	switch outcome.Status {
	case types.StatusDown:
		return m.handleDown(ref, outcome)
	case types.StatusUp:
		return m.handleUp(ref, outcome)
	default:
		return Transition{}, nil
	}
}

func (m *Manager) handleDown(ref types.MonitorRef, outcome types.CheckOutcome) (Transition, error) {
	lock := m.monitorLock(ref.ID)
	lock.Lock()
	defer lock.Unlock()

	active, err := m.store.FindActiveIncident(ref.ID)
	if err != nil {
		return Transition{}, fmt.Errorf("find active incident: %w", err)
	}

	now := outcome.CheckedAt
	if now.IsZero() {
		now = time.Now()
	}

	if active != nil {
		// Still down: append to the existing incident, no state change.
		message := fmt.Sprintf("Check failed again: %s", outcome.Message)
		if err := m.store.AppendIncidentEvent(active.ID, message, now); err != nil {
			return Transition{}, fmt.Errorf("append incident event: %w", err)
		}

		m.publish(active)
		return Transition{Incident: active}, nil
	}

	incident := &models.Incident{
		MonitorID: ref.ID,
		Status:    models.IncidentOpen,
		Title:     fmt.Sprintf("%s is down", ref.Name),
		StartedAt: now,
		Events: []models.IncidentEvent{
			{Message: fmt.Sprintf("Check failed: %s", outcome.Message), OccurredAt: now},
		},
	}

	if err := m.store.CreateIncident(incident); err != nil {
		return Transition{}, fmt.Errorf("create incident: %w", err)
	}

	m.metrics.IncidentsOpened.Inc()
	slog.Info("incident opened", "monitor_id", ref.ID, "incident_id", incident.ID)
	m.publish(incident)

	return Transition{Incident: incident, Opened: true}, nil
}

func (m *Manager) handleUp(ref types.MonitorRef, outcome types.CheckOutcome) (Transition, error) {
	lock := m.monitorLock(ref.ID)
	lock.Lock()
	defer lock.Unlock()

	active, err := m.store.FindActiveIncident(ref.ID)
	if err != nil {
		return Transition{}, fmt.Errorf("find active incident: %w", err)
	}

	if active == nil {
		return Transition{}, nil
	}

	now := outcome.CheckedAt
	if now.IsZero() {
		now = time.Now()
	}

	if err := m.store.ResolveIncident(active.ID, now); err != nil {
		return Transition{}, fmt.Errorf("resolve incident: %w", err)
	}

	if err := m.store.AppendIncidentEvent(active.ID, "Monitor recovered, incident resolved", now); err != nil {
		slog.Error("failed to append resolution event", "incident_id", active.ID, "error", err)
	}

	active.Status = models.IncidentResolved
	active.ResolvedAt = &now

	m.metrics.IncidentsResolved.Inc()
	slog.Info("incident resolved", "monitor_id", ref.ID, "incident_id", active.ID)
	m.publish(active)

	return Transition{Incident: active, Resolved: true}, nil
}

// SetStatus is the manual override path. It moves the monitor's active
// incident to INVESTIGATING, MITIGATED or RESOLVED, appends an event, and
// always announces the change regardless of whether a check status changed.
func (m *Manager) SetStatus(ref types.MonitorRef, status, note string) (*models.Incident, error) {
	switch status {
	case models.IncidentInvestigating, models.IncidentMitigated, models.IncidentResolved:
	default:
		return nil, fmt.Errorf("invalid incident status %q", status)
	}

	lock := m.monitorLock(ref.ID)
	lock.Lock()
	defer lock.Unlock()

	active, err := m.store.FindActiveIncident(ref.ID)
	if err != nil {
		return nil, fmt.Errorf("find active incident: %w", err)
	}
	if active == nil {
		return nil, fmt.Errorf("monitor %d has no active incident", ref.ID)
	}

	now := time.Now()

	if status == models.IncidentResolved {
		if err := m.store.ResolveIncident(active.ID, now); err != nil {
			return nil, fmt.Errorf("resolve incident: %w", err)
		}
		active.ResolvedAt = &now
	} else {
		if err := m.store.UpdateIncidentStatus(active.ID, status); err != nil {
			return nil, fmt.Errorf("update incident status: %w", err)
		}
	}
	active.Status = status

	message := fmt.Sprintf("Status manually set to %s", status)
	if note != "" {
		message = fmt.Sprintf("%s: %s", message, note)
	}
	if err := m.store.AppendIncidentEvent(active.ID, message, now); err != nil {
		slog.Error("failed to append manual status event", "incident_id", active.ID, "error", err)
	}

	m.publish(active)

	if m.announcer != nil {
		m.announcer.Notify(ref, status, message)
	}

	return active, nil
}

func (m *Manager) publish(incident *models.Incident) {
	m.publisher.Publish(realtime.TopicIncidentUpdate, incident)
}
