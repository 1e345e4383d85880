package models

import "time"

// AuditEvent is an append-only record of a state change, written in the same
// database transaction as the change itself.
type AuditEvent struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Actor      string    `gorm:"not null" json:"actor"`
	Action     string    `gorm:"not null;index" json:"action"`
	EntityType string    `gorm:"not null" json:"entity_type"`
	EntityRef  string    `gorm:"index" json:"entity_ref"`
	Before     JSON      `gorm:"type:jsonb" json:"before,omitempty"`
	After      JSON      `gorm:"type:jsonb" json:"after,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
