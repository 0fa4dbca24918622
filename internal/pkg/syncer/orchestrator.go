package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"github.com/OpenStartupHQ/RevenueRadar/app/repository"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/env"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/providers"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/revenue"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/vault"
)

const defaultLookbackDays = 90

// AdapterFunc resolves a provider type to its API client. Tests swap this
// out for fakes.
type AdapterFunc func(provider string) (providers.Adapter, error)

// Orchestrator runs the sync pipeline for payment processor connections:
// decrypt credentials, fetch transactions and current metrics, normalize
// into daily snapshots, upsert, and record the attempt in the sync log.
// Every failure is isolated per connection; one broken processor never
// blocks the others.
type Orchestrator struct {
	repos      *repository.Repositories
	vault      *vault.Vault
	adapterFor AdapterFunc
	lookback   time.Duration
}

func NewOrchestrator(repos *repository.Repositories, v *vault.Vault) *Orchestrator {
	days := env.GetEnvInt("SYNC_LOOKBACK_DAYS", defaultLookbackDays)
	if days < 1 {
		days = defaultLookbackDays
	}
	return &Orchestrator{
		repos:      repos,
		vault:      v,
		adapterFor: providers.ForProvider,
		lookback:   time.Duration(days) * 24 * time.Hour,
	}
}

// SyncAll runs one pass over every active connection. It returns the number
// of connections that synced successfully; per-connection errors are logged
// and recorded, never propagated.
func (o *Orchestrator) SyncAll(ctx context.Context) (int, error) {
	connections, err := o.repos.Connection.ListActive()
	if err != nil {
		return 0, fmt.Errorf("list active connections: %w", err)
	}

	succeeded := 0
	for i := range connections {
		if ctx.Err() != nil {
			return succeeded, ctx.Err()
		}
		if err := o.SyncConnection(ctx, &connections[i]); err != nil {
			log.Errorf("[Syncer] Connection %s (%s) failed: %v", connections[i].UUID, connections[i].Provider, err)
			continue
		}
		succeeded++
	}
	return succeeded, nil
}

// SyncConnection syncs one connection. The returned error has already been
// written to the sync log; callers only use it for reporting.
func (o *Orchestrator) SyncConnection(ctx context.Context, conn *models.Connection) error {
	startedAt := time.Now().UTC()

	creds, err := o.decryptCredentials(conn)
	if err != nil {
		return o.recordError(conn.ID, startedAt, err)
	}

	adapter, err := o.adapterFor(conn.Provider)
	if err != nil {
		return o.recordError(conn.ID, startedAt, err)
	}

	now := time.Now().UTC()
	points, err := adapter.FetchRevenue(ctx, creds, providers.DateRange{Start: now.Add(-o.lookback), End: now}, "")
	if err != nil {
		return o.recordError(conn.ID, startedAt, err)
	}

	// Current metrics are best effort; a processor that can serve history
	// but not subscriptions still gets its revenue snapshots.
	metrics, err := adapter.FetchCurrentMetrics(ctx, creds)
	if err != nil {
		if errors.Is(err, providers.ErrInvalidCredentials) {
			return o.recordError(conn.ID, startedAt, err)
		}
		log.Warnf("[Syncer] Connection %s: current metrics unavailable: %v", conn.UUID, err)
		metrics = nil
	}

	snapshots := revenue.DailySnapshots(conn.ID, points, metrics)
	for i := range snapshots {
		if err := o.repos.Snapshot.Upsert(&snapshots[i]); err != nil {
			return o.recordError(conn.ID, startedAt, fmt.Errorf("upsert snapshot %s: %w", snapshots[i].SnapshotDate.Format("2006-01-02"), err))
		}
	}

	syncedAt := time.Now().UTC()
	if err := o.repos.Connection.UpdateLastSyncedAt(conn.ID, syncedAt); err != nil {
		return o.recordError(conn.ID, startedAt, fmt.Errorf("update last_synced_at: %w", err))
	}
	conn.LastSyncedAt = &syncedAt

	completedAt := time.Now().UTC()
	entry := &models.SyncLog{
		ConnectionID:     conn.ID,
		Status:           models.SyncStatusSuccess,
		RecordsProcessed: len(snapshots),
		StartedAt:        startedAt,
		CompletedAt:      &completedAt,
	}
	if err := o.repos.SyncLog.Create(entry); err != nil {
		log.Errorf("[Syncer] Connection %s: sync log write failed: %v", conn.UUID, err)
	}
	log.Infof("[Syncer] Connection %s (%s): %d snapshots in %s", conn.UUID, conn.Provider, len(snapshots), completedAt.Sub(startedAt).Round(time.Millisecond))
	return nil
}

func (o *Orchestrator) decryptCredentials(conn *models.Connection) (providers.Credentials, error) {
	apiKey, err := o.vault.Decrypt(conn.APIKeyEnc)
	if err != nil {
		return providers.Credentials{}, fmt.Errorf("decrypt api key: %w", err)
	}
	creds := providers.Credentials{APIKey: apiKey}
	if conn.SecondarySecretEnc != "" {
		secondary, err := o.vault.Decrypt(conn.SecondarySecretEnc)
		if err != nil {
			return providers.Credentials{}, fmt.Errorf("decrypt secondary secret: %w", err)
		}
		creds.SecondarySecret = secondary
	}
	return creds, nil
}

// recordError appends an error entry to the sync log and passes the cause
// back for the caller's own reporting.
func (o *Orchestrator) recordError(connectionID uint, startedAt time.Time, cause error) error {
	completedAt := time.Now().UTC()
	entry := &models.SyncLog{
		ConnectionID: connectionID,
		Status:       models.SyncStatusError,
		ErrorMessage: cause.Error(),
		StartedAt:    startedAt,
		CompletedAt:  &completedAt,
	}
	if err := o.repos.SyncLog.Create(entry); err != nil {
		log.Errorf("[Syncer] Sync log write failed for connection %d: %v", connectionID, err)
	}
	return cause
}
