package controllers

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"github.com/OpenStartupHQ/RevenueRadar/app/repository"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/middleware"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/providers"
)

// CreateConnectionRequest is the payload for POST /api/v1/connections.
type CreateConnectionRequest struct {
	Provider        string `json:"provider" validate:"required"`
	APIKey          string `json:"api_key" validate:"required,min=8"`
	SecondarySecret string `json:"secondary_secret"`
}

// Validate runs struct validation on the request.
func (r *CreateConnectionRequest) Validate() error {
	v := validator.New()
	return v.Struct(r)
}

// connectionResponse strips credential fields from API output.
func connectionResponse(conn *models.Connection) fiber.Map {
	return fiber.Map{
		"uuid":           conn.UUID,
		"provider":       conn.Provider,
		"is_active":      conn.IsActive,
		"last_synced_at": formatTimePtr(conn.LastSyncedAt),
		"created_at":     formatTime(conn.CreatedAt),
	}
}

// HandleCreateConnection validates the processor credentials against the
// live API, encrypts them, and stores the connection.
func HandleCreateConnection(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)
	if tenant == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing tenant"})
	}

	var req CreateConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Malformed JSON body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": err.Error()})
	}
	if !models.IsSupportedProvider(req.Provider) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Unsupported provider: " + req.Provider})
	}

	adapter, err := providers.ForProvider(req.Provider)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": err.Error()})
	}
	creds := providers.Credentials{APIKey: req.APIKey, SecondarySecret: req.SecondarySecret}
	if err := adapter.ValidateCredentials(c.Context(), creds); err != nil {
		if errors.Is(err, providers.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "credential_error", "message": "Processor rejected the credentials"})
		}
		log.Errorf("[Connections] Credential validation against %s failed: %v", req.Provider, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Processor API unreachable, try again later"})
	}

	apiKeyEnc, err := credentialVault.Encrypt(req.APIKey)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to encrypt credentials"})
	}
	conn := &models.Connection{
		TenantID:  tenant.ID,
		Provider:  req.Provider,
		APIKeyEnc: apiKeyEnc,
		IsActive:  true,
	}
	if req.SecondarySecret != "" {
		secondaryEnc, err := credentialVault.Encrypt(req.SecondarySecret)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to encrypt credentials"})
		}
		conn.SecondarySecretEnc = secondaryEnc
	}

	repo := repository.GetGlobalFactory().GetConnectionRepository()
	if err := repo.Create(conn); err != nil {
		log.Errorf("[Connections] Create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store connection"})
	}

	return c.Status(fiber.StatusCreated).JSON(connectionResponse(conn))
}

// HandleListConnections lists the tenant's connections without credentials.
func HandleListConnections(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)
	if tenant == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing tenant"})
	}

	repo := repository.GetGlobalFactory().GetConnectionRepository()
	connections, err := repo.GetByTenantID(tenant.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load connections"})
	}

	out := make([]fiber.Map, 0, len(connections))
	for i := range connections {
		out = append(out, connectionResponse(&connections[i]))
	}
	return c.JSON(fiber.Map{"connections": out})
}

// HandleGetConnection returns one connection by UUID.
func HandleGetConnection(c *fiber.Ctx) error {
	conn, ok := tenantConnection(c)
	if !ok {
		return nil
	}
	return c.JSON(connectionResponse(conn))
}

// HandleDeleteConnection disables a connection. The row and its snapshots
// are kept; a disabled connection is skipped by the scheduler.
func HandleDeleteConnection(c *fiber.Ctx) error {
	conn, ok := tenantConnection(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetConnectionRepository()
	if err := repo.Disable(conn.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to disable connection"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleTriggerSync runs an immediate sync of one connection.
func HandleTriggerSync(c *fiber.Ctx) error {
	conn, ok := tenantConnection(c)
	if !ok {
		return nil
	}
	if !conn.IsActive {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Connection is disabled"})
	}

	// Goes through the manager so the trigger queues behind a running
	// scheduled pass; a connection is never synced concurrently with itself.
	if err := syncManager.SyncOne(context.Background(), conn); err != nil {
		// The attempt is already recorded in the sync log; report the class.
		if errors.Is(err, providers.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "credential_error", "message": "Processor rejected the stored credentials"})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Sync failed, see sync history"})
	}
	return c.JSON(fiber.Map{"status": "synced", "connection": connectionResponse(conn)})
}

// HandleSyncHistory returns recent sync log entries for a connection.
func HandleSyncHistory(c *fiber.Ctx) error {
	conn, ok := tenantConnection(c)
	if !ok {
		return nil
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	entries, err := repository.GetGlobalFactory().GetSyncLogRepository().ListByConnection(conn.ID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load sync history"})
	}

	out := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, fiber.Map{
			"status":            e.Status,
			"records_processed": e.RecordsProcessed,
			"error_message":     e.ErrorMessage,
			"started_at":        formatTime(e.StartedAt),
			"completed_at":      formatTimePtr(e.CompletedAt),
		})
	}
	return c.JSON(fiber.Map{"connection": conn.UUID, "syncs": out})
}

// tenantConnection resolves the :uuid route param to a connection owned by
// the authenticated tenant. On failure the response has already been
// written and ok is false.
func tenantConnection(c *fiber.Ctx) (conn *models.Connection, ok bool) {
	tenant := middleware.TenantFromContext(c)
	if tenant == nil {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing tenant"})
		return nil, false
	}

	uuid := c.Params("uuid")
	repo := repository.GetGlobalFactory().GetConnectionRepository()
	conn, err := repo.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Connection not found"})
		} else {
			_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load connection"})
		}
		return nil, false
	}
	if conn.TenantID != tenant.ID {
		// Hide other tenants' connections entirely.
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Connection not found"})
		return nil, false
	}
	return conn, true
}
