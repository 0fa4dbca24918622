package controllers

import (
	"time"

	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/exportarchive"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/signing"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/syncer"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/vault"
)

// Shared controller dependencies, wired once at startup.
var (
	credentialVault *vault.Vault
	signingService  *signing.Service
	syncManager     *syncer.Manager
	archiveClient   *exportarchive.Client // nil when archiving is disabled
	archiveCfg      *exportarchive.Config
	appStartedAt    = time.Now()
)

// InitializeAPIControllers wires the controller dependencies. Must run
// before the router installs any handler.
func InitializeAPIControllers(v *vault.Vault, signer *signing.Service, manager *syncer.Manager, archive *exportarchive.Client, cfg *exportarchive.Config) {
	credentialVault = v
	signingService = signer
	syncManager = manager
	archiveClient = archive
	archiveCfg = cfg
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
