package store

import (
	"errors"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
	"gorm.io/gorm"
)

// GormStore is the database-backed Store used in production.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetMonitor(id uint) (*models.Monitor, error) {
	var monitor models.Monitor

	if err := s.db.First(&monitor, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &monitor, nil
}

// ListActiveMonitors returns every non-paused monitor.
func (s *GormStore) ListActiveMonitors() ([]models.Monitor, error) {
	var monitors []models.Monitor

	if err := s.db.Where("paused = ?", false).Find(&monitors).Error; err != nil {
		return nil, err
	}

	return monitors, nil
}

func (s *GormStore) CreateCheckResult(r *models.CheckResult) error {
	return s.db.Create(r).Error
}

func (s *GormStore) LatestCheckResult(monitorID uint) (*models.CheckResult, error) {
	var result models.CheckResult

	err := s.db.Where("monitor_id = ?", monitorID).
		Order("checked_at DESC").
		First(&result).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *GormStore) FindActiveIncident(monitorID uint) (*models.Incident, error) {
	var incident models.Incident

	err := s.db.Where("monitor_id = ? AND status IN ?", monitorID, models.ActiveIncidentStatuses).
		Order("started_at DESC").
		First(&incident).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &incident, nil
}

func (s *GormStore) GetIncident(id uint) (*models.Incident, error) {
	var incident models.Incident

	if err := s.db.Preload("Events").First(&incident, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &incident, nil
}

func (s *GormStore) CreateIncident(inc *models.Incident) error {
	return s.db.Create(inc).Error
}

func (s *GormStore) AppendIncidentEvent(incidentID uint, message string, at time.Time) error {
	event := models.IncidentEvent{
		IncidentID: incidentID,
		Message:    message,
		OccurredAt: at,
	}

	return s.db.Create(&event).Error
}

func (s *GormStore) UpdateIncidentStatus(incidentID uint, status string) error {
	return s.db.Model(&models.Incident{}).
		Where("id = ?", incidentID).
		Update("status", status).Error
}

// ResolveIncident sets RESOLVED and resolved_at. The conditional WHERE keeps
// the write idempotent under racing resolvers.
func (s *GormStore) ResolveIncident(incidentID uint, at time.Time) error {
	return s.db.Model(&models.Incident{}).
		Where("id = ? AND status <> ?", incidentID, models.IncidentResolved).
		Updates(map[string]interface{}{
			"status":      models.IncidentResolved,
			"resolved_at": at,
		}).Error
}

func (s *GormStore) GetHeartbeatToken(token string) (*models.HeartbeatToken, error) {
	var hb models.HeartbeatToken

	if err := s.db.Where("token = ?", token).First(&hb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &hb, nil
}

func (s *GormStore) GetHeartbeatTokenByMonitor(monitorID uint) (*models.HeartbeatToken, error) {
	var hb models.HeartbeatToken

	if err := s.db.Where("monitor_id = ?", monitorID).First(&hb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &hb, nil
}

func (s *GormStore) ListHeartbeatTokens() ([]models.HeartbeatToken, error) {
	var tokens []models.HeartbeatToken

	if err := s.db.Find(&tokens).Error; err != nil {
		return nil, err
	}

	return tokens, nil
}

// UpdateHeartbeatLastSeen only ever moves last_heartbeat forward.
func (s *GormStore) UpdateHeartbeatLastSeen(monitorID uint, ts time.Time) error {
	return s.db.Model(&models.HeartbeatToken{}).
		Where("monitor_id = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)", monitorID, ts).
		Update("last_heartbeat", ts).Error
}

func (s *GormStore) ChannelsForMonitor(monitorID uint) ([]models.NotificationChannel, error) {
	var monitor models.Monitor

	if err := s.db.Preload("Channels").First(&monitor, monitorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return monitor.Channels, nil
}

// IsSuppressed implements Suppressor: true while any maintenance window
// covering the monitor is active.
func (s *GormStore) IsSuppressed(monitorID uint) (bool, error) {
	now := time.Now()

	var count int64
	err := s.db.Model(&models.MaintenanceWindow{}).
		Joins("JOIN maintenance_monitors ON maintenance_monitors.maintenance_window_id = maintenance_windows.id").
		Where("maintenance_monitors.monitor_id = ? AND starts_at <= ? AND ends_at >= ?", monitorID, now, now).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}
