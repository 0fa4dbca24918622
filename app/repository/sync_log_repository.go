package repository

import (
	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"gorm.io/gorm"
)

// syncLogRepository implements the SyncLogRepository interface
type syncLogRepository struct {
	db *gorm.DB
}

// NewSyncLogRepository creates a new sync log repository instance
func NewSyncLogRepository(db *gorm.DB) SyncLogRepository {
	return &syncLogRepository{db: db}
}

// Create appends a sync attempt record. Entries are never updated.
func (r *syncLogRepository) Create(entry *models.SyncLog) error {
	return r.db.Create(entry).Error
}

// ListByConnection retrieves the most recent sync attempts for a connection
func (r *syncLogRepository) ListByConnection(connectionID uint, limit int) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	err := r.db.Where("connection_id = ?", connectionID).
		Order("started_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// LastSuccess retrieves the most recent successful sync for a connection
func (r *syncLogRepository) LastSuccess(connectionID uint) (*models.SyncLog, error) {
	var entry models.SyncLog
	err := r.db.Where("connection_id = ? AND status = ?", connectionID, models.SyncStatusSuccess).
		Order("started_at DESC").First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// LastSuccessAcrossConnections retrieves the newest successful sync of the
// whole deployment, used by the health endpoint.
func (r *syncLogRepository) LastSuccessAcrossConnections() (*models.SyncLog, error) {
	var entry models.SyncLog
	err := r.db.Where("status = ?", models.SyncStatusSuccess).
		Order("started_at DESC").First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
