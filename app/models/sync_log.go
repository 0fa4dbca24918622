package models

import "time"

// Sync attempt outcomes recorded in the sync log.
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncLog is an append-only audit record of one sync attempt for one
// connection. Rows are never mutated after creation.
type SyncLog struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ConnectionID     uint       `gorm:"not null;index" json:"connection_id"`
	Status           string     `gorm:"type:varchar(20);not null" json:"status"`
	RecordsProcessed int        `gorm:"not null;default:0" json:"records_processed"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt        time.Time  `gorm:"type:timestamp;not null" json:"started_at"`
	CompletedAt      *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
