package repository

import (
	"time"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"gorm.io/gorm"
)

// connectionRepository implements the ConnectionRepository interface
type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new connection repository instance
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

// Create creates a new connection in the database
func (r *connectionRepository) Create(conn *models.Connection) error {
	return r.db.Create(conn).Error
}

// GetByID retrieves a connection by its ID
func (r *connectionRepository) GetByID(id uint) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.First(&conn, id).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// GetByUUID retrieves a connection by its public identifier
func (r *connectionRepository) GetByUUID(uuid string) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.Where("uuid = ?", uuid).First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// GetByTenantID retrieves all connections belonging to a tenant
func (r *connectionRepository) GetByTenantID(tenantID uint) ([]models.Connection, error) {
	var conns []models.Connection
	err := r.db.Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&conns).Error
	return conns, err
}

// ListActive retrieves every active connection across all tenants, in a
// stable order so sync passes walk connections deterministically.
func (r *connectionRepository) ListActive() ([]models.Connection, error) {
	var conns []models.Connection
	err := r.db.Where("is_active = ?", true).Order("id ASC").Find(&conns).Error
	return conns, err
}

// Update updates an existing connection in the database
func (r *connectionRepository) Update(conn *models.Connection) error {
	return r.db.Save(conn).Error
}

// Disable soft-disables a connection; snapshots and sync history are kept.
func (r *connectionRepository) Disable(id uint) error {
	return r.db.Model(&models.Connection{}).Where("id = ?", id).
		Update("is_active", false).Error
}

// UpdateLastSyncedAt stamps the connection after a successful sync
func (r *connectionRepository) UpdateLastSyncedAt(id uint, t time.Time) error {
	return r.db.Model(&models.Connection{}).Where("id = ?", id).
		Update("last_synced_at", t).Error
}

// Count returns the total number of connections
func (r *connectionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Connection{}).Count(&count).Error
	return count, err
}
