package results_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-dev/spyglass/internal/executor"
	"github.com/spyglass-dev/spyglass/internal/incidents"
	"github.com/spyglass-dev/spyglass/internal/metrics"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/monitors"
	"github.com/spyglass-dev/spyglass/internal/notify"
	"github.com/spyglass-dev/spyglass/internal/realtime"
	"github.com/spyglass-dev/spyglass/internal/results"
	"github.com/spyglass-dev/spyglass/internal/scheduler"
	"github.com/spyglass-dev/spyglass/internal/store"
	"github.com/spyglass-dev/spyglass/internal/types"
)

// switchableAdapter either blocks until the check deadline or answers up,
// controlled per test phase.
type switchableAdapter struct {
	mu      sync.Mutex
	healthy bool
}

func (a *switchableAdapter) setHealthy(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.healthy = v
}

func (a *switchableAdapter) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	a.mu.Lock()
	healthy := a.healthy
	a.mu.Unlock()

	if !healthy {
		<-ctx.Done()
		return types.CheckOutcome{}, ctx.Err()
	}
	return types.CheckOutcome{Status: types.StatusUp, Message: "200 OK", LatencyMs: 20, CheckedAt: time.Now()}, nil
}

// fixedDownAdapter answers down immediately.
type fixedDownAdapter struct{}

func (fixedDownAdapter) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	return types.CheckOutcome{Status: types.StatusDown, Message: "connection refused", CheckedAt: time.Now()}, nil
}

// TestConcurrentManualRunsOpenOneIncident covers a manual run racing other
// checks for the same monitor: incident creation stays serialized.
func TestConcurrentManualRunsOpenOneIncident(t *testing.T) {
	st := store.NewMemoryStore()
	monitor := &models.Monitor{Name: "api", Kind: "http", Interval: 60, Timeout: 5, CreateIncidents: true}
	st.PutMonitor(monitor)

	m := metrics.NewNop()
	exec := executor.New(monitors.Registry{types.KindHTTP: fixedDownAdapter{}}, m)
	incidentMgr := incidents.NewManager(st, realtime.NopPublisher{}, m)
	router := notify.NewRouter(st, m)
	handler := results.NewHandler(st, st, incidentMgr, router, realtime.NopPublisher{})
	sched := scheduler.New(st, exec, handler, m, 8)
	defer sched.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sched.RunMonitorCheck(context.Background(), monitor.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, st.ActiveIncidentCount(monitor.ID))
	assert.Len(t, st.Results(monitor.ID), 8, "every check is recorded even when only one opens the incident")
}

// TestOutagePipeline drives a monitor through a full outage: a timed-out
// check opens an incident and alerts, the recovery resolves it and alerts
// again, and nothing in between re-alerts.
func TestOutagePipeline(t *testing.T) {
	var hookMu sync.Mutex
	var statuses []string

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		hookMu.Lock()
		statuses = append(statuses, payload.Status)
		hookMu.Unlock()
	}))
	defer hook.Close()

	st := store.NewMemoryStore()
	monitor := &models.Monitor{Name: "api", Kind: "http", Interval: 60, Timeout: 1, CreateIncidents: true}
	st.PutMonitor(monitor)

	channelConfig, err := json.Marshal(map[string]string{"url": hook.URL})
	require.NoError(t, err)
	st.PutChannels(monitor.ID, []models.NotificationChannel{{Name: "ops", Type: "webhook", Config: channelConfig}})

	m := metrics.NewNop()
	adapter := &switchableAdapter{}
	exec := executor.New(monitors.Registry{types.KindHTTP: adapter}, m)

	incidentMgr := incidents.NewManager(st, realtime.NopPublisher{}, m)
	router := notify.NewRouter(st, m)
	incidentMgr.SetAnnouncer(router)

	handler := results.NewHandler(st, st, incidentMgr, router, realtime.NopPublisher{})
	sched := scheduler.New(st, exec, handler, m, 4)
	defer sched.Stop()

	// Phase 1: the check times out and the incident opens.
	result, err := sched.RunMonitorCheck(context.Background(), monitor.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, string(types.StatusDown), result.Status)
	assert.Equal(t, "timeout after 1000ms", result.Message)

	active, err := st.FindActiveIncident(monitor.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, models.IncidentOpen, active.Status)

	opened, err := st.GetIncident(active.ID)
	require.NoError(t, err)
	require.Len(t, opened.Events, 1)
	assert.Contains(t, opened.Events[0].Message, "timeout after 1000ms")

	// Phase 2: still down. The incident gains an event but nobody is
	// re-alerted and no second incident appears.
	_, err = sched.RunMonitorCheck(context.Background(), monitor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ActiveIncidentCount(monitor.ID))

	// Phase 3: recovery resolves the incident.
	adapter.setHealthy(true)

	result, err = sched.RunMonitorCheck(context.Background(), monitor.ID)
	require.NoError(t, err)
	assert.Equal(t, string(types.StatusUp), result.Status)

	active, err = st.FindActiveIncident(monitor.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	resolved, err := st.GetIncident(opened.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.GreaterOrEqual(t, len(resolved.Events), 3)

	// Exactly two alerts for the whole outage: down and recovery.
	hookMu.Lock()
	defer hookMu.Unlock()
	assert.Equal(t, []string{"down", "up"}, statuses)
}
