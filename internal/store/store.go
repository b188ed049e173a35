package store

import (
	"errors"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
)

// ErrNotFound is returned by lookups for records that do not exist.
var ErrNotFound = errors.New("store: record not found")

// Store is the persistence collaborator consumed by the check pipeline.
// FindActiveIncident and LatestCheckResult return (nil, nil) when there is
// no matching row; that is a normal outcome, not an error.
type Store interface {
	GetMonitor(id uint) (*models.Monitor, error)
	ListActiveMonitors() ([]models.Monitor, error)

	CreateCheckResult(r *models.CheckResult) error
	LatestCheckResult(monitorID uint) (*models.CheckResult, error)

	FindActiveIncident(monitorID uint) (*models.Incident, error)
	GetIncident(id uint) (*models.Incident, error)
	CreateIncident(inc *models.Incident) error
	AppendIncidentEvent(incidentID uint, message string, at time.Time) error
	UpdateIncidentStatus(incidentID uint, status string) error
	ResolveIncident(incidentID uint, at time.Time) error

	GetHeartbeatToken(token string) (*models.HeartbeatToken, error)
	GetHeartbeatTokenByMonitor(monitorID uint) (*models.HeartbeatToken, error)
	ListHeartbeatTokens() ([]models.HeartbeatToken, error)
	UpdateHeartbeatLastSeen(monitorID uint, ts time.Time) error

	ChannelsForMonitor(monitorID uint) ([]models.NotificationChannel, error)
}

// Suppressor answers whether a monitor is currently inside an active
// maintenance window.
type Suppressor interface {
	IsSuppressed(monitorID uint) (bool, error)
}
