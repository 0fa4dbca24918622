package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/OpenStartupHQ/RevenueRadar/app/controllers"
	"github.com/OpenStartupHQ/RevenueRadar/app/repository"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/cache"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/database"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/env"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/exportarchive"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/router"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/signing"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/syncer"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/vault"
)

func main() {
	app := NewApplication()

	// Graceful shutdown: stop the scheduler before the HTTP listener.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		log.Println("Shutting down...")
		if manager := syncer.GetManager(); manager != nil {
			manager.Stop()
		}
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	cache.SetupCache()

	credentialVault, err := vault.New(env.GetEnv("VAULT_SECRET", ""))
	if err != nil {
		log.Fatalf("Credential vault init failed: %v", err)
	}
	signingService := signing.NewServiceFromEnv()

	archiveCfg, err := exportarchive.LoadConfig()
	if err != nil {
		log.Fatalf("Export archive config invalid: %v", err)
	}
	var archiveClient *exportarchive.Client
	if archiveCfg.IsEnabled() {
		archiveClient, err = exportarchive.NewClient(archiveCfg)
		if err != nil {
			log.Fatalf("Export archive init failed: %v", err)
		}
	}

	orchestrator := syncer.NewOrchestrator(repository.GetGlobalRepositories(), credentialVault)
	manager := syncer.InitManager(orchestrator)
	controllers.InitializeAPIControllers(credentialVault, signingService, manager, archiveClient, archiveCfg)
	manager.Start()

	app := fiber.New(fiber.Config{
		AppName: "RevenueRadar",
	})
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}
