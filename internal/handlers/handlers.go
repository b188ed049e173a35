package handlers

import (
	"github.com/spyglass-dev/spyglass/internal/heartbeat"
	"github.com/spyglass-dev/spyglass/internal/incidents"
	"github.com/spyglass-dev/spyglass/internal/realtime"
	"github.com/spyglass-dev/spyglass/internal/scheduler"
	"github.com/spyglass-dev/spyglass/internal/store"
)

// Handlers bundles the collaborators behind the HTTP surface. The wider
// API (monitor CRUD, dashboards, auth) lives outside this service; these
// endpoints cover the check pipeline's inbound operations only.
type Handlers struct {
	Store     store.Store
	Scheduler *scheduler.Scheduler
	Heartbeat *heartbeat.Service
	Incidents *incidents.Manager
	Hub       *realtime.Hub
}
