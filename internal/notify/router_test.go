package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-dev/spyglass/internal/metrics"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/store"
	"github.com/spyglass-dev/spyglass/internal/types"
)

type fakeChannelNotifier struct {
	channelType string
	mode        string // "ok", "fail" or "panic"

	mu   sync.Mutex
	sent []Summary
}

func (n *fakeChannelNotifier) Type() string { return n.channelType }

func (n *fakeChannelNotifier) Validate() error { return nil }

func (n *fakeChannelNotifier) Send(ctx context.Context, summary Summary) error {
	switch n.mode {
	case "fail":
		return errors.New("delivery failed")
	case "panic":
		panic("notifier bug")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, summary)
	return nil
}

func (n *fakeChannelNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func setupRouter(t *testing.T, notifiers map[string]*fakeChannelNotifier) (*Router, types.MonitorRef) {
	t.Helper()

	st := store.NewMemoryStore()
	monitor := &models.Monitor{Name: "api", Kind: "http", Interval: 60}
	st.PutMonitor(monitor)

	channels := make([]models.NotificationChannel, 0, len(notifiers))
	for channelType := range notifiers {
		channels = append(channels, models.NotificationChannel{Type: channelType})
	}
	st.PutChannels(monitor.ID, channels)

	router := NewRouter(st, metrics.NewNop())
	router.build = func(channel models.NotificationChannel) (Notifier, error) {
		n, ok := notifiers[channel.Type]
		if !ok {
			return nil, errors.New("unknown channel type")
		}
		return n, nil
	}

	return router, types.MonitorRef{ID: monitor.ID, Name: monitor.Name}
}

func strPtr(s string) *string { return &s }

func TestNotifyChangeSkipsRepeatedStatus(t *testing.T) {
	webhook := &fakeChannelNotifier{channelType: "webhook", mode: "ok"}
	router, ref := setupRouter(t, map[string]*fakeChannelNotifier{"webhook": webhook})

	outcome := types.CheckOutcome{Status: types.StatusDown, Message: "still broken", CheckedAt: time.Now()}
	router.NotifyChange(ref, outcome, strPtr("down"))

	assert.Equal(t, 0, webhook.sentCount(), "repeated down must not re-alert")
}

func TestNotifyChangeFirstCheckAlwaysSends(t *testing.T) {
	webhook := &fakeChannelNotifier{channelType: "webhook", mode: "ok"}
	router, ref := setupRouter(t, map[string]*fakeChannelNotifier{"webhook": webhook})

	outcome := types.CheckOutcome{Status: types.StatusUp, Message: "OK", CheckedAt: time.Now()}
	router.NotifyChange(ref, outcome, nil)

	require.Equal(t, 1, webhook.sentCount())
	assert.Equal(t, ref.ID, webhook.sent[0].MonitorID)
	assert.Equal(t, "up", webhook.sent[0].Status)
}

func TestNotifyChangeSendsOnTransition(t *testing.T) {
	webhook := &fakeChannelNotifier{channelType: "webhook", mode: "ok"}
	router, ref := setupRouter(t, map[string]*fakeChannelNotifier{"webhook": webhook})

	outcome := types.CheckOutcome{Status: types.StatusDown, Message: "connection refused", CheckedAt: time.Now()}
	router.NotifyChange(ref, outcome, strPtr("up"))

	require.Equal(t, 1, webhook.sentCount())
	assert.Equal(t, "connection refused", webhook.sent[0].Message)
}

func TestChannelFailuresAreIsolated(t *testing.T) {
	good := &fakeChannelNotifier{channelType: "webhook", mode: "ok"}
	failing := &fakeChannelNotifier{channelType: "slack", mode: "fail"}
	panicking := &fakeChannelNotifier{channelType: "discord", mode: "panic"}

	router, ref := setupRouter(t, map[string]*fakeChannelNotifier{
		"webhook": good,
		"slack":   failing,
		"discord": panicking,
	})

	router.Notify(ref, "down", "connection refused")

	assert.Equal(t, 1, good.sentCount(), "healthy channel delivers despite sibling failures")
}

func TestNotifyWithoutChannelsIsNoop(t *testing.T) {
	router, ref := setupRouter(t, nil)

	// Must not panic or block.
	router.Notify(ref, "down", "connection refused")
}
