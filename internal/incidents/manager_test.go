package incidents

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-dev/spyglass/internal/metrics"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/realtime"
	"github.com/spyglass-dev/spyglass/internal/store"
	"github.com/spyglass-dev/spyglass/internal/types"
)

type recordingAnnouncer struct {
	mu    sync.Mutex
	calls []string
}

func (a *recordingAnnouncer) Notify(ref types.MonitorRef, status, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, status)
}

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore, types.MonitorRef) {
	t.Helper()

	st := store.NewMemoryStore()
	monitor := &models.Monitor{Name: "api", Kind: "http", Interval: 60}
	st.PutMonitor(monitor)

	mgr := NewManager(st, realtime.NopPublisher{}, metrics.NewNop())
	return mgr, st, types.MonitorRef{ID: monitor.ID, Name: monitor.Name}
}

func downOutcome(msg string) types.CheckOutcome {
	return types.CheckOutcome{Status: types.StatusDown, Message: msg, CheckedAt: time.Now()}
}

func upOutcome() types.CheckOutcome {
	return types.CheckOutcome{Status: types.StatusUp, Message: "OK", CheckedAt: time.Now()}
}

func TestConcurrentDownResultsOpenOneIncident(t *testing.T) {
	mgr, st, ref := newTestManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.HandleResult(ref, downOutcome("connection refused"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, st.ActiveIncidentCount(ref.ID))
}

func TestIncidentLifecycle(t *testing.T) {
	mgr, st, ref := newTestManager(t)

	// Up with no active incident is a no-op.
	tr, err := mgr.HandleResult(ref, upOutcome())
	require.NoError(t, err)
	assert.Nil(t, tr.Incident)

	tr, err = mgr.HandleResult(ref, downOutcome("timeout after 5000ms"))
	require.NoError(t, err)
	require.NotNil(t, tr.Incident)
	assert.True(t, tr.Opened)
	assert.Equal(t, models.IncidentOpen, tr.Incident.Status)

	incidentID := tr.Incident.ID

	// A second down appends an event without opening a new incident.
	tr, err = mgr.HandleResult(ref, downOutcome("timeout after 5000ms"))
	require.NoError(t, err)
	assert.False(t, tr.Opened)
	assert.Equal(t, incidentID, tr.Incident.ID)
	assert.Equal(t, 1, st.ActiveIncidentCount(ref.ID))

	tr, err = mgr.HandleResult(ref, upOutcome())
	require.NoError(t, err)
	assert.True(t, tr.Resolved)
	require.NotNil(t, tr.Incident.ResolvedAt)

	stored, err := st.GetIncident(incidentID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentResolved, stored.Status)
	assert.GreaterOrEqual(t, len(stored.Events), 3)
	assert.Equal(t, 0, st.ActiveIncidentCount(ref.ID))
}

func TestDegradedLeavesIncidentStateAlone(t *testing.T) {
	mgr, st, ref := newTestManager(t)

	tr, err := mgr.HandleResult(ref, types.CheckOutcome{Status: types.StatusDegraded, Message: "slow", CheckedAt: time.Now()})
	require.NoError(t, err)
	assert.Nil(t, tr.Incident)
	assert.Equal(t, 0, st.ActiveIncidentCount(ref.ID))

	// Degraded after an open incident does not resolve it either.
	_, err = mgr.HandleResult(ref, downOutcome("connection refused"))
	require.NoError(t, err)

	tr, err = mgr.HandleResult(ref, types.CheckOutcome{Status: types.StatusDegraded, Message: "slow", CheckedAt: time.Now()})
	require.NoError(t, err)
	assert.Nil(t, tr.Incident)
	assert.Equal(t, 1, st.ActiveIncidentCount(ref.ID))
}

func TestMitigatedIncidentLifecycle(t *testing.T) {
	mgr, st, ref := newTestManager(t)

	tr, err := mgr.HandleResult(ref, downOutcome("connection refused"))
	require.NoError(t, err)
	incidentID := tr.Incident.ID

	incident, err := mgr.SetStatus(ref, models.IncidentMitigated, "failover engaged")
	require.NoError(t, err)
	assert.Equal(t, models.IncidentMitigated, incident.Status)
	assert.Equal(t, 1, st.ActiveIncidentCount(ref.ID), "mitigated is still active")

	// A further down appends to the mitigated incident instead of opening
	// a second one.
	tr, err = mgr.HandleResult(ref, downOutcome("connection refused"))
	require.NoError(t, err)
	assert.False(t, tr.Opened)
	assert.Equal(t, incidentID, tr.Incident.ID)
	assert.Equal(t, 1, st.ActiveIncidentCount(ref.ID))

	// Manual resolution is reachable from MITIGATED.
	incident, err = mgr.SetStatus(ref, models.IncidentResolved, "")
	require.NoError(t, err)
	assert.Equal(t, models.IncidentResolved, incident.Status)
	require.NotNil(t, incident.ResolvedAt)
	assert.Equal(t, 0, st.ActiveIncidentCount(ref.ID))
}

func TestRecoveryResolvesMitigatedIncident(t *testing.T) {
	mgr, st, ref := newTestManager(t)

	_, err := mgr.HandleResult(ref, downOutcome("connection refused"))
	require.NoError(t, err)

	_, err = mgr.SetStatus(ref, models.IncidentMitigated, "")
	require.NoError(t, err)

	tr, err := mgr.HandleResult(ref, upOutcome())
	require.NoError(t, err)
	assert.True(t, tr.Resolved)
	require.NotNil(t, tr.Incident.ResolvedAt)
	assert.Equal(t, models.IncidentResolved, tr.Incident.Status)
	assert.Equal(t, 0, st.ActiveIncidentCount(ref.ID))
}

func TestSetStatusManualOverride(t *testing.T) {
	mgr, st, ref := newTestManager(t)

	announcer := &recordingAnnouncer{}
	mgr.SetAnnouncer(announcer)

	_, err := mgr.SetStatus(ref, models.IncidentInvestigating, "")
	assert.Error(t, err, "no active incident to override")

	_, err = mgr.HandleResult(ref, downOutcome("connection refused"))
	require.NoError(t, err)

	incident, err := mgr.SetStatus(ref, models.IncidentInvestigating, "looking into it")
	require.NoError(t, err)
	assert.Equal(t, models.IncidentInvestigating, incident.Status)
	assert.Equal(t, 1, st.ActiveIncidentCount(ref.ID), "investigating is still active")

	incident, err = mgr.SetStatus(ref, models.IncidentResolved, "")
	require.NoError(t, err)
	assert.Equal(t, models.IncidentResolved, incident.Status)
	require.NotNil(t, incident.ResolvedAt)
	assert.Equal(t, 0, st.ActiveIncidentCount(ref.ID))

	// Manual overrides always announce, even when the check status never
	// changed in between.
	assert.Equal(t, []string{models.IncidentInvestigating, models.IncidentResolved}, announcer.calls)

	_, err = mgr.SetStatus(ref, "BOGUS", "")
	assert.Error(t, err)
}
