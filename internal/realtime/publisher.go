package realtime

// Topics published by the check pipeline.
const (
	TopicMonitorResult  = "monitor:result"
	TopicIncidentUpdate = "incident:update"
	TopicHeartbeatLate  = "heartbeat:late"
)

// Publisher fans events out to connected dashboard clients. It is injected
// into the result handler and incident manager so tests can record or drop
// publishes.
type Publisher interface {
	Publish(topic string, payload interface{})
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(topic string, payload interface{}) {}
