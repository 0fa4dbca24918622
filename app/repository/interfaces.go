package repository

import (
	"time"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"gorm.io/gorm"
)

// TenantRepository defines the interface for tenant-related database operations
type TenantRepository interface {
	Create(tenant *models.Tenant) error
	GetByID(id uint) (*models.Tenant, error)
	GetByAPIKeyHash(hash string) (*models.Tenant, error)
	Update(tenant *models.Tenant) error
	Count() (int64, error)
}

// ConnectionRepository defines the interface for connection-related database operations
type ConnectionRepository interface {
	Create(conn *models.Connection) error
	GetByID(id uint) (*models.Connection, error)
	GetByUUID(uuid string) (*models.Connection, error)
	GetByTenantID(tenantID uint) ([]models.Connection, error)
	ListActive() ([]models.Connection, error)
	Update(conn *models.Connection) error
	Disable(id uint) error
	UpdateLastSyncedAt(id uint, t time.Time) error
	Count() (int64, error)
}

// SnapshotRepository defines the interface for revenue snapshot operations.
// Upsert must be idempotent on (connection_id, snapshot_date).
type SnapshotRepository interface {
	Upsert(snapshot *models.RevenueSnapshot) error
	GetByConnectionAndDate(connectionID uint, date time.Time) (*models.RevenueSnapshot, error)
	ListByConnection(connectionID uint, from, to time.Time) ([]models.RevenueSnapshot, error)
	ListByTenant(tenantID uint, from, to time.Time) ([]models.RevenueSnapshot, error)
	LatestByConnection(connectionID uint) (*models.RevenueSnapshot, error)
	MonthlySeries(tenantID uint, months int) ([]MonthlyRevenue, error)
	CountByConnection(connectionID uint) (int64, error)
}

// SyncLogRepository defines the interface for the append-only sync audit log
type SyncLogRepository interface {
	Create(entry *models.SyncLog) error
	ListByConnection(connectionID uint, limit int) ([]models.SyncLog, error)
	LastSuccess(connectionID uint) (*models.SyncLog, error)
	LastSuccessAcrossConnections() (*models.SyncLog, error)
}

// MonthlyRevenue is one point of the public 12-month chart series. Month is
// the first of the month as "2006-01-01"; DATE_FORMAT yields a string column,
// so scanning into time.Time would fail under parseTime.
type MonthlyRevenue struct {
	Month    string  `json:"month"`
	Revenue  float64 `json:"revenue"`
	Currency string  `json:"currency"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	Tenant     TenantRepository
	Connection ConnectionRepository
	Snapshot   SnapshotRepository
	SyncLog    SyncLogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tenant:     NewTenantRepository(db),
		Connection: NewConnectionRepository(db),
		Snapshot:   NewSnapshotRepository(db),
		SyncLog:    NewSyncLogRepository(db),
	}
}
