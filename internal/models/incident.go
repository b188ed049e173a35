package models

import (
	"time"
)

const (
	IncidentOpen          = "OPEN"
	IncidentInvestigating = "INVESTIGATING"
	IncidentMitigated     = "MITIGATED"
	IncidentResolved      = "RESOLVED"
)

// ActiveIncidentStatuses are the statuses counted against the
// one-active-incident-per-monitor invariant. MITIGATED stays in the set so
// a recovery or a manual resolution can still close the incident.
var ActiveIncidentStatuses = []string{IncidentOpen, IncidentInvestigating, IncidentMitigated}

type Incident struct {
	BaseModel

	MonitorID uint   `gorm:"not null;index"`
	Status    string `gorm:"not null"`
	Title     string `gorm:"not null"`
	StartedAt time.Time
	// ResolvedAt is set iff Status is RESOLVED.
	ResolvedAt *time.Time

	// Relationships
	Monitor Monitor         `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Events  []IncidentEvent `gorm:"foreignKey:IncidentID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

// Active reports whether the incident counts against the single-active
// invariant. Only RESOLVED is terminal.
func (i *Incident) Active() bool {
	return i.Status != IncidentResolved
}
