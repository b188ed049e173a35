package models

import (
	"gorm.io/datatypes"
)

type Monitor struct {
	BaseModel

	Name    string `gorm:"not null"`
	Kind    string `gorm:"not null"` // "http", "tcp", "browser", "push", etc.
	Paused  bool   `gorm:"not null;default:false"`
	// Interval and Timeout are in seconds.
	Interval        int            `gorm:"not null"`
	Timeout         int            `gorm:"not null;default:30"`
	CreateIncidents bool           `gorm:"not null;default:true"`
	Config          datatypes.JSON `gorm:"type:jsonb"`

	// Relationships
	Channels     []NotificationChannel `gorm:"many2many:monitor_channels;constraint:OnDelete:CASCADE"`
	CheckResults []CheckResult         `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Incidents    []Incident            `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
