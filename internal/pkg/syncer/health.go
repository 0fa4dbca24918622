package syncer

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/OpenStartupHQ/RevenueRadar/app/repository"
)

// Staleness threshold after which the service reports itself degraded.
const staleAfter = 48 * time.Hour

const (
	HealthHealthy = "healthy"
	// Degraded: the process runs but the data is stale.
	HealthDegraded = "degraded"
	// Unhealthy: a hard dependency failure, e.g. the database is unreachable.
	HealthUnhealthy = "unhealthy"
)

// Health is the health endpoint payload.
type Health struct {
	Status     string     `json:"status"`
	Uptime     string     `json:"uptime"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// CheckHealth reports degraded when active connections exist but no sync
// has succeeded within the staleness window. A deployment with no
// connections yet is healthy by definition.
func CheckHealth(repos *repository.Repositories, startedAt time.Time) Health {
	h := Health{
		Status: HealthHealthy,
		Uptime: time.Since(startedAt).Round(time.Second).String(),
	}

	connections, err := repos.Connection.ListActive()
	if err != nil {
		h.Status = HealthUnhealthy
		return h
	}
	if len(connections) == 0 {
		return h
	}

	last, err := repos.SyncLog.LastSuccessAcrossConnections()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.Status = HealthUnhealthy
		return h
	}
	if last == nil || err != nil {
		h.Status = HealthDegraded
		return h
	}
	completed := last.StartedAt
	if last.CompletedAt != nil {
		completed = *last.CompletedAt
	}
	h.LastSyncAt = &completed
	if time.Since(completed) > staleAfter {
		h.Status = HealthDegraded
	}
	return h
}
