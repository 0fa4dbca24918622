package models

import "time"

// RevenueSnapshot is one aggregated revenue observation for a connection on
// a calendar bucket (a day, or the first of a month for monthly interval).
// At most one row exists per (connection_id, snapshot_date); re-syncs
// overwrite via upsert instead of duplicating.
type RevenueSnapshot struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ConnectionID  uint      `gorm:"not null;index:ux_revenue_snapshots_connection_date,unique,priority:1" json:"connection_id"`
	SnapshotDate  time.Time `gorm:"type:date;not null;index:ux_revenue_snapshots_connection_date,unique,priority:2" json:"snapshot_date"`
	Revenue       float64   `gorm:"type:decimal(14,2);not null;default:0" json:"revenue"`
	MRR           *float64  `gorm:"type:decimal(14,2);default:null" json:"mrr,omitempty"`
	ARR           *float64  `gorm:"type:decimal(14,2);default:null" json:"arr,omitempty"`
	TotalRevenue  *float64  `gorm:"type:decimal(14,2);default:null" json:"total_revenue,omitempty"`
	CustomerCount *int      `gorm:"default:null" json:"customer_count,omitempty"`
	Currency      string    `gorm:"type:char(3);not null;default:'USD'" json:"currency"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
