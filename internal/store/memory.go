package store

import (
	"sort"
	"sync"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
)

// MemoryStore is an in-memory Store used by tests and by ephemeral setups
// that do not want a database.
type MemoryStore struct {
	mu sync.Mutex

	nextID    uint
	monitors  map[uint]*models.Monitor
	results   map[uint][]models.CheckResult // keyed by monitor ID
	incidents map[uint]*models.Incident
	events    map[uint][]models.IncidentEvent // keyed by incident ID
	tokens    map[uint]*models.HeartbeatToken // keyed by monitor ID
	windows   []models.MaintenanceWindow
	channels  map[uint][]models.NotificationChannel // keyed by monitor ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		monitors:  make(map[uint]*models.Monitor),
		results:   make(map[uint][]models.CheckResult),
		incidents: make(map[uint]*models.Incident),
		events:    make(map[uint][]models.IncidentEvent),
		tokens:    make(map[uint]*models.HeartbeatToken),
		channels:  make(map[uint][]models.NotificationChannel),
	}
}

func (s *MemoryStore) allocID() uint {
	id := s.nextID
	s.nextID++
	return id
}

// PutMonitor registers a monitor, assigning an ID if it has none.
func (s *MemoryStore) PutMonitor(m *models.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == 0 {
		m.ID = s.allocID()
	}
	copied := *m
	s.monitors[m.ID] = &copied
}

func (s *MemoryStore) PutHeartbeatToken(t *models.HeartbeatToken) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == 0 {
		t.ID = s.allocID()
	}
	copied := *t
	s.tokens[t.MonitorID] = &copied
}

func (s *MemoryStore) PutChannels(monitorID uint, chans []models.NotificationChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels[monitorID] = append([]models.NotificationChannel(nil), chans...)
}

func (s *MemoryStore) PutMaintenanceWindow(w models.MaintenanceWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windows = append(s.windows, w)
}

func (s *MemoryStore) GetMonitor(id uint) (*models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.monitors[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *MemoryStore) ListActiveMonitors() ([]models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Monitor
	for _, m := range s.monitors {
		if !m.Paused {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateCheckResult(r *models.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == 0 {
		r.ID = s.allocID()
	}
	s.results[r.MonitorID] = append(s.results[r.MonitorID], *r)
	return nil
}

func (s *MemoryStore) LatestCheckResult(monitorID uint) (*models.CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.results[monitorID]
	if len(rs) == 0 {
		return nil, nil
	}

	latest := rs[0]
	for _, r := range rs[1:] {
		if r.CheckedAt.After(latest.CheckedAt) {
			latest = r
		}
	}
	return &latest, nil
}

// Results returns all recorded results for a monitor, oldest first.
func (s *MemoryStore) Results(monitorID uint) []models.CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := append([]models.CheckResult(nil), s.results[monitorID]...)
	sort.Slice(rs, func(i, j int) bool { return rs[i].CheckedAt.Before(rs[j].CheckedAt) })
	return rs
}

func (s *MemoryStore) FindActiveIncident(monitorID uint) (*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.Incident
	for _, inc := range s.incidents {
		if inc.MonitorID != monitorID || !inc.Active() {
			continue
		}
		if found == nil || inc.StartedAt.After(found.StartedAt) {
			found = inc
		}
	}

	if found == nil {
		return nil, nil
	}
	copied := *found
	return &copied, nil
}

func (s *MemoryStore) GetIncident(id uint) (*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *inc
	copied.Events = append([]models.IncidentEvent(nil), s.events[id]...)
	return &copied, nil
}

func (s *MemoryStore) CreateIncident(inc *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inc.ID == 0 {
		inc.ID = s.allocID()
	}
	copied := *inc
	copied.Events = nil
	s.incidents[inc.ID] = &copied

	for _, e := range inc.Events {
		e.IncidentID = inc.ID
		if e.ID == 0 {
			e.ID = s.allocID()
		}
		s.events[inc.ID] = append(s.events[inc.ID], e)
	}
	return nil
}

func (s *MemoryStore) AppendIncidentEvent(incidentID uint, message string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.incidents[incidentID]; !ok {
		return ErrNotFound
	}
	s.events[incidentID] = append(s.events[incidentID], models.IncidentEvent{
		BaseModel:  models.BaseModel{ID: s.allocID()},
		IncidentID: incidentID,
		Message:    message,
		OccurredAt: at,
	})
	return nil
}

func (s *MemoryStore) UpdateIncidentStatus(incidentID uint, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[incidentID]
	if !ok {
		return ErrNotFound
	}
	inc.Status = status
	return nil
}

func (s *MemoryStore) ResolveIncident(incidentID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[incidentID]
	if !ok {
		return ErrNotFound
	}
	if inc.Status == models.IncidentResolved {
		return nil
	}
	inc.Status = models.IncidentResolved
	inc.ResolvedAt = &at
	return nil
}

// ActiveIncidentCount reports how many active incidents exist for a monitor.
func (s *MemoryStore) ActiveIncidentCount(monitorID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, inc := range s.incidents {
		if inc.MonitorID == monitorID && inc.Active() {
			count++
		}
	}
	return count
}

func (s *MemoryStore) GetHeartbeatToken(token string) (*models.HeartbeatToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tokens {
		if t.Token == token {
			copied := *t
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetHeartbeatTokenByMonitor(monitorID uint) (*models.HeartbeatToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[monitorID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *MemoryStore) ListHeartbeatTokens() ([]models.HeartbeatToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := make([]models.HeartbeatToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		tokens = append(tokens, *t)
	}
	return tokens, nil
}

func (s *MemoryStore) UpdateHeartbeatLastSeen(monitorID uint, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[monitorID]
	if !ok {
		return ErrNotFound
	}
	if t.LastHeartbeat == nil || t.LastHeartbeat.Before(ts) {
		t.LastHeartbeat = &ts
	}
	return nil
}

func (s *MemoryStore) ChannelsForMonitor(monitorID uint) ([]models.NotificationChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.monitors[monitorID]; !ok {
		return nil, ErrNotFound
	}
	return append([]models.NotificationChannel(nil), s.channels[monitorID]...), nil
}

func (s *MemoryStore) IsSuppressed(monitorID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, w := range s.windows {
		if now.Before(w.StartsAt) || now.After(w.EndsAt) {
			continue
		}
		for _, m := range w.Monitors {
			if m.ID == monitorID {
				return true, nil
			}
		}
	}
	return false, nil
}
