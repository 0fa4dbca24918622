package repository

import (
	"time"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// snapshotRepository implements the SnapshotRepository interface
type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new revenue snapshot repository instance
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Upsert writes a snapshot keyed by (connection_id, snapshot_date).
// Re-syncing the same bucket overwrites revenue; MRR/ARR/customer count are
// only touched when the incoming snapshot carries them, so older buckets
// keep their previously stored current-state metrics.
func (r *snapshotRepository) Upsert(snapshot *models.RevenueSnapshot) error {
	assignments := []string{"revenue", "currency", "updated_at"}
	if snapshot.MRR != nil {
		assignments = append(assignments, "mrr", "arr")
	}
	if snapshot.TotalRevenue != nil {
		assignments = append(assignments, "total_revenue")
	}
	if snapshot.CustomerCount != nil {
		assignments = append(assignments, "customer_count")
	}

	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "connection_id"},
			{Name: "snapshot_date"},
		},
		DoUpdates: clause.AssignmentColumns(assignments),
	}).Create(snapshot).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("connection_id = ? AND snapshot_date = ?", snapshot.ConnectionID, snapshot.SnapshotDate).
		First(snapshot).Error
}

// GetByConnectionAndDate retrieves the snapshot for one bucket
func (r *snapshotRepository) GetByConnectionAndDate(connectionID uint, date time.Time) (*models.RevenueSnapshot, error) {
	var snap models.RevenueSnapshot
	err := r.db.Where("connection_id = ? AND snapshot_date = ?", connectionID, date).First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListByConnection retrieves snapshots for a connection within [from, to]
func (r *snapshotRepository) ListByConnection(connectionID uint, from, to time.Time) ([]models.RevenueSnapshot, error) {
	var snaps []models.RevenueSnapshot
	err := r.db.Where("connection_id = ? AND snapshot_date BETWEEN ? AND ?", connectionID, from, to).
		Order("snapshot_date ASC").Find(&snaps).Error
	return snaps, err
}

// ListByTenant retrieves snapshots across all of a tenant's connections
func (r *snapshotRepository) ListByTenant(tenantID uint, from, to time.Time) ([]models.RevenueSnapshot, error) {
	var snaps []models.RevenueSnapshot
	err := r.db.
		Joins("JOIN connections ON connections.id = revenue_snapshots.connection_id").
		Where("connections.tenant_id = ? AND revenue_snapshots.snapshot_date BETWEEN ? AND ?", tenantID, from, to).
		Order("revenue_snapshots.snapshot_date ASC").
		Find(&snaps).Error
	return snaps, err
}

// LatestByConnection retrieves the most recent snapshot for a connection
func (r *snapshotRepository) LatestByConnection(connectionID uint) (*models.RevenueSnapshot, error) {
	var snap models.RevenueSnapshot
	err := r.db.Where("connection_id = ?", connectionID).
		Order("snapshot_date DESC").First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// MonthlySeries aggregates a tenant's revenue into calendar months for the
// public chart. Buckets are grouped per currency; callers must not sum
// across currencies.
func (r *snapshotRepository) MonthlySeries(tenantID uint, months int) ([]MonthlyRevenue, error) {
	since := time.Now().AddDate(0, -months, 0)
	var series []MonthlyRevenue
	err := r.db.Model(&models.RevenueSnapshot{}).
		Select("DATE_FORMAT(revenue_snapshots.snapshot_date, '%Y-%m-01') AS month, SUM(revenue_snapshots.revenue) AS revenue, revenue_snapshots.currency AS currency").
		Joins("JOIN connections ON connections.id = revenue_snapshots.connection_id").
		Where("connections.tenant_id = ? AND revenue_snapshots.snapshot_date >= ?", tenantID, since).
		Group("month, revenue_snapshots.currency").
		Order("month ASC").
		Scan(&series).Error
	return series, err
}

// CountByConnection returns how many snapshot buckets exist for a connection
func (r *snapshotRepository) CountByConnection(connectionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.RevenueSnapshot{}).Where("connection_id = ?", connectionID).Count(&count).Error
	return count, err
}
