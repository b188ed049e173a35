package models

import "time"

// MaintenanceWindow suppresses incident creation and notification for its
// monitors while active. Results are still recorded.
type MaintenanceWindow struct {
	BaseModel

	Title    string
	StartsAt time.Time `gorm:"not null"`
	EndsAt   time.Time `gorm:"not null"`

	// Relationships
	Monitors []Monitor `gorm:"many2many:maintenance_monitors"`
}
