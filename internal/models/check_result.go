package models

import (
	"time"

	"gorm.io/datatypes"
)

// CheckResult rows are append-only: written once by the result handler and
// never mutated afterwards.
type CheckResult struct {
	BaseModel

	MonitorID uint   `gorm:"not null;index"`
	Status    string `gorm:"not null"`
	LatencyMs int64  `gorm:"not null"`
	Message   string
	Meta      datatypes.JSON `gorm:"type:jsonb"`
	CheckedAt time.Time      `gorm:"not null;index"`

	// Relationships
	Monitor Monitor `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
