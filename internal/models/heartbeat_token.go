package models

import "time"

// HeartbeatToken authenticates inbound pushes for a passive monitor.
// LastHeartbeat is monotonically non-decreasing; the store enforces it.
type HeartbeatToken struct {
	BaseModel

	MonitorID uint   `gorm:"not null;uniqueIndex"`
	Token     string `gorm:"not null;uniqueIndex"`
	// HeartbeatEvery is the expected push cadence in seconds.
	HeartbeatEvery int `gorm:"not null"`
	LastHeartbeat  *time.Time

	// Relationships
	Monitor Monitor `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
