package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/env"
)

const defaultSyncIntervalMinutes = 60

// Manager schedules periodic sync passes over all active connections.
type Manager struct {
	orchestrator *Orchestrator
	syncTicker   *time.Ticker
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	running      bool

	// passMu serializes passes so a slow scheduled run and a manual
	// trigger never sync the same connection concurrently.
	passMu sync.Mutex
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitManager wires the global manager (singleton). Later calls return the
// existing instance and ignore the arguments.
func InitManager(orchestrator *Orchestrator) *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			orchestrator: orchestrator,
			stopCh:       make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global manager, or nil before InitManager ran.
func GetManager() *Manager {
	return globalManager
}

// Start launches the scheduler. An initial pass runs immediately so a fresh
// deployment shows data without waiting a full interval.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate the stop channel so the manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true

	interval := time.Duration(env.GetEnvInt("SYNC_INTERVAL_MINUTES", defaultSyncIntervalMinutes)) * time.Minute
	if interval < time.Minute {
		interval = defaultSyncIntervalMinutes * time.Minute
	}
	log.Infof("[Syncer] Starting scheduler (interval: %s)", interval)

	m.syncTicker = time.NewTicker(interval)
	m.wg.Add(1)
	go m.syncWorker()
}

// Stop halts the scheduler and waits for an in-flight pass to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Syncer] Stopping scheduler...")
	if m.syncTicker != nil {
		m.syncTicker.Stop()
	}
	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	log.Info("[Syncer] Stopped")
}

// IsRunning returns whether the scheduler is currently running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunPassNow triggers a single synchronous pass, used by the on-demand sync
// endpoint and on startup.
func (m *Manager) RunPassNow(ctx context.Context) (int, error) {
	m.passMu.Lock()
	defer m.passMu.Unlock()
	return m.orchestrator.SyncAll(ctx)
}

// SyncOne syncs a single connection on demand. It shares the pass mutex
// with the scheduler, so a manual trigger queues behind a running pass
// instead of syncing the same connection twice at once.
func (m *Manager) SyncOne(ctx context.Context, conn *models.Connection) error {
	m.passMu.Lock()
	defer m.passMu.Unlock()
	return m.orchestrator.SyncConnection(ctx, conn)
}

func (m *Manager) syncWorker() {
	defer m.wg.Done()

	m.runPass()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Syncer] Sync worker stopping")
			return
		case <-m.syncTicker.C:
			m.runPass()
		}
	}
}

func (m *Manager) runPass() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	start := time.Now()
	synced, err := m.RunPassNow(ctx)
	if err != nil {
		log.Errorf("[Syncer] Pass failed: %v", err)
		return
	}
	log.Infof("[Syncer] Pass complete: %d connections in %s", synced, time.Since(start).Round(time.Millisecond))
}
