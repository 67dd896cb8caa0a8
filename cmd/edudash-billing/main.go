package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/edudashpro/billing-service/app/repository"
	"github.com/edudashpro/billing-service/internal/pkg/cache"
	"github.com/edudashpro/billing-service/internal/pkg/database"
	"github.com/edudashpro/billing-service/internal/pkg/env"
	"github.com/edudashpro/billing-service/internal/pkg/mailqueue"
	"github.com/edudashpro/billing-service/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.SetGlobalFactory(repository.NewFactory(database.GetDB()))

	// Start mail delivery workers before accepting webhooks so queued
	// notices drain immediately.
	mailqueue.GetManager().Start()

	app := fiber.New(fiber.Config{
		AppName: "edudash-billing",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
