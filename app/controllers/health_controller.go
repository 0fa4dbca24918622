package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/OpenStartupHQ/RevenueRadar/app/repository"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/syncer"
)

// HandleHealth reports service status. Degraded means active connections
// exist but no sync succeeded within the staleness window; unhealthy means
// a hard dependency failure. Both answer 503.
func HandleHealth(c *fiber.Ctx) error {
	health := syncer.CheckHealth(repository.GetGlobalRepositories(), appStartedAt)
	status := fiber.StatusOK
	if health.Status != syncer.HealthHealthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(health)
}
