package models

import (
	"gorm.io/datatypes"
)

type NotificationChannel struct {
	BaseModel

	Name   string         `gorm:"not null"`
	Type   string         `gorm:"not null"` // "email", "webhook", "slack", "discord", "telegram"
	Config datatypes.JSON `gorm:"type:jsonb"`

	// Relationships
	Monitors []Monitor `gorm:"many2many:monitor_channels"`
}
