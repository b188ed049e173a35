package models

import "time"

// IncidentEvent is an append-only log line attached to an incident.
type IncidentEvent struct {
	BaseModel

	IncidentID uint   `gorm:"not null;index"`
	Message    string `gorm:"not null"`
	OccurredAt time.Time

	// Relationships
	Incident Incident `gorm:"foreignKey:IncidentID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
