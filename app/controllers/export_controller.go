package controllers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"github.com/OpenStartupHQ/RevenueRadar/app/repository"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/middleware"
)

// RevenueDataPoint is one row of the revenue export.
type RevenueDataPoint struct {
	Date          string   `json:"date"`
	Revenue       float64  `json:"revenue"`
	MRR           *float64 `json:"mrr,omitempty"`
	CustomerCount *int     `json:"customer_count,omitempty"`
	Currency      string   `json:"currency"`
}

func exportRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(-1, 0, 0)
	to := now

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, err
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, err
		}
		to = parsed.Add(24*time.Hour - time.Second)
	}
	return from, to, nil
}

func buildExport(tenantID uint, from, to time.Time) ([]RevenueDataPoint, error) {
	snapshots, err := repository.GetGlobalFactory().GetSnapshotRepository().ListByTenant(tenantID, from, to)
	if err != nil {
		return nil, err
	}
	points := make([]RevenueDataPoint, 0, len(snapshots))
	for _, s := range snapshots {
		points = append(points, RevenueDataPoint{
			Date:          s.SnapshotDate.UTC().Format("2006-01-02"),
			Revenue:       s.Revenue,
			MRR:           s.MRR,
			CustomerCount: s.CustomerCount,
			Currency:      s.Currency,
		})
	}
	return points, nil
}

// HandleExportRevenue returns the unsigned revenue export for the tenant.
func HandleExportRevenue(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)
	if tenant == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing tenant"})
	}
	from, to, err := exportRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Dates must be YYYY-MM-DD"})
	}

	points, err := buildExport(tenant.ID, from, to)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load snapshots"})
	}
	return c.JSON(fiber.Map{"data": points})
}

// HandleExportRevenueSigned wraps the export in a signed payload. A signing
// failure is reported to this caller only; the unsigned export and the
// underlying snapshots stay servable.
func HandleExportRevenueSigned(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)
	if tenant == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing tenant"})
	}
	from, to, err := exportRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Dates must be YYYY-MM-DD"})
	}

	points, err := buildExport(tenant.ID, from, to)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load snapshots"})
	}

	payload, err := signingService.Sign(points)
	if err != nil {
		log.Errorf("[Export] Signing failed for tenant %d: %v", tenant.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "signing_error", "message": "Signing key unavailable; unsigned export remains available"})
	}

	archiveSignedExport(c, tenant, payload)
	return c.JSON(payload)
}

// archiveSignedExport stores the signed document in the S3 archive when
// enabled. Best effort: archive failures never fail the export request.
func archiveSignedExport(c *fiber.Ctx, tenant *models.Tenant, payload interface{}) {
	if archiveClient == nil || archiveCfg == nil {
		return
	}
	document, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("[Export] Archive encode failed for tenant %d: %v", tenant.ID, err)
		return
	}
	key := archiveCfg.GetObjectKey(tenant.ID, time.Now())
	if _, err := archiveClient.StoreExport(c.Context(), key, document); err != nil {
		log.Errorf("[Export] Archive upload failed for tenant %d: %v", tenant.ID, err)
	}
}
