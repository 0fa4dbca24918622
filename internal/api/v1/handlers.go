package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to controllers to keep behavior consistent with the router
	"github.com/OpenStartupHQ/RevenueRadar/app/controllers"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/middleware"
)

// APIServer implements the v1 API surface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// RegisterHandlers mounts every v1 route. Connection and export routes sit
// behind tenant API key auth; health and public stats are open.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)
	router.Get("/health", controllers.HandleHealth)
	router.Get("/public/stats/:id", controllers.HandlePublicStats)

	auth := middleware.APIKeyAuthMiddleware()
	router.Post("/connections", auth, controllers.HandleCreateConnection)
	router.Get("/connections", auth, controllers.HandleListConnections)
	router.Get("/connections/:uuid", auth, controllers.HandleGetConnection)
	router.Delete("/connections/:uuid", auth, controllers.HandleDeleteConnection)
	router.Post("/connections/:uuid/sync", auth, controllers.HandleTriggerSync)
	router.Get("/connections/:uuid/syncs", auth, controllers.HandleSyncHistory)
	router.Get("/export", auth, controllers.HandleExportRevenue)
	router.Get("/export/signed", auth, controllers.HandleExportRevenueSigned)
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}
