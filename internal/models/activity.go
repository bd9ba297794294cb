package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the audit trail of catalog imports, deactivations, bulk
// distributions and reconciliations. Rows are append-only.
type ActivityLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ActorID       uint              `json:"actor_id"`
	ActorEmail    string            `gorm:"size:255;index" json:"actor_email"`
	ActorRole     string            `gorm:"size:32;not null" json:"actor_role"`
	Action        string            `gorm:"size:64;not null;index" json:"action"`
	EntityType    string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID      *uint             `json:"entity_id"`
	CorrelationID string            `gorm:"size:128;index" json:"correlation_id"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
}
