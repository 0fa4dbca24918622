package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"github.com/OpenStartupHQ/RevenueRadar/app/repository"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/cache"
)

const statsCacheTTL = 5 * time.Minute

// PublicStats is the unauthenticated stats payload for one tenant. All
// aggregates are scoped to the tenant's primary currency; TotalRevenue is
// the lifetime settled revenue reported by the processors, not a chart sum.
type PublicStats struct {
	TenantID      uint                        `json:"tenant_id"`
	MRR           float64                     `json:"mrr"`
	ARR           float64                     `json:"arr"`
	TotalRevenue  float64                     `json:"total_revenue"`
	CustomerCount int                         `json:"customer_count"`
	Currency      string                      `json:"currency"`
	GrowthRate    *float64                    `json:"growth_rate,omitempty"`
	Chart         []repository.MonthlyRevenue `json:"chart"`
	GeneratedAt   time.Time                   `json:"generated_at"`
}

// HandlePublicStats serves aggregated revenue stats for one tenant. The
// response carries no credentials or per-transaction data and is cached in
// Redis for a few minutes.
func HandlePublicStats(c *fiber.Ctx) error {
	tenantID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Tenant id must be numeric"})
	}

	cacheKey := fmt.Sprintf("public_stats:%d", tenantID)
	if cached, err := cache.Get(cacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	stats, err := computePublicStats(uint(tenantID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Tenant not found"})
		}
		log.Errorf("[Stats] Failed to compute stats for tenant %d: %v", tenantID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to compute stats"})
	}

	if encoded, err := json.Marshal(stats); err == nil {
		if err := cache.Set(cacheKey, string(encoded), statsCacheTTL); err != nil {
			log.Warnf("[Stats] Cache write failed: %v", err)
		}
	}
	return c.JSON(stats)
}

// computePublicStats aggregates the latest snapshot of every connection the
// tenant owns and derives the 12-month chart plus month-over-month growth.
func computePublicStats(tenantID uint) (*PublicStats, error) {
	factory := repository.GetGlobalFactory()

	if _, err := factory.GetTenantRepository().GetByID(tenantID); err != nil {
		return nil, err
	}

	connections, err := factory.GetConnectionRepository().GetByTenantID(tenantID)
	if err != nil {
		return nil, err
	}

	snapshotRepo := factory.GetSnapshotRepository()
	latests := make([]models.RevenueSnapshot, 0, len(connections))
	for _, conn := range connections {
		latest, err := snapshotRepo.LatestByConnection(conn.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		latests = append(latests, *latest)
	}

	stats := &PublicStats{TenantID: tenantID, GeneratedAt: time.Now().UTC()}
	aggregateLatestSnapshots(stats, latests)

	chart, err := snapshotRepo.MonthlySeries(tenantID, 12)
	if err != nil {
		return nil, err
	}
	stats.Chart = chart
	stats.GrowthRate = monthOverMonthGrowth(chart, stats.Currency)

	return stats, nil
}

// aggregateLatestSnapshots sums current-state metrics across connections.
// The first currency seen becomes the primary currency; snapshots in other
// currencies are skipped, never converted and summed in.
func aggregateLatestSnapshots(stats *PublicStats, latests []models.RevenueSnapshot) {
	for _, latest := range latests {
		if stats.Currency == "" {
			stats.Currency = latest.Currency
		}
		if !strings.EqualFold(latest.Currency, stats.Currency) {
			continue
		}
		if latest.MRR != nil {
			stats.MRR += *latest.MRR
		}
		if latest.ARR != nil {
			stats.ARR += *latest.ARR
		}
		if latest.TotalRevenue != nil {
			stats.TotalRevenue += *latest.TotalRevenue
		}
		if latest.CustomerCount != nil {
			stats.CustomerCount += *latest.CustomerCount
		}
	}
}

// monthOverMonthGrowth compares the two most recent chart months in the
// given currency. Nil when fewer than two such months exist or the base
// month is zero.
func monthOverMonthGrowth(chart []repository.MonthlyRevenue, currency string) *float64 {
	var months []repository.MonthlyRevenue
	for _, point := range chart {
		if strings.EqualFold(point.Currency, currency) {
			months = append(months, point)
		}
	}
	if len(months) < 2 {
		return nil
	}
	previous := months[len(months)-2].Revenue
	current := months[len(months)-1].Revenue
	if previous == 0 {
		return nil
	}
	rate := (current - previous) / previous * 100
	rate = math.Round(rate*100) / 100
	return &rate
}
