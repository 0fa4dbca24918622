package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/env"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "revenueradar",
			"docs":    "/docs/api/v1",
		})
	})

	// Runtime monitor, only exposed when credentials are configured.
	metricsUser := env.GetEnv("METRICS_USER", "")
	if metricsUser != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				metricsUser: env.GetEnv("METRICS_PASSWORD", ""),
			},
		}), monitor.New())
	}
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
