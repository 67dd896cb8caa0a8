package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/edudashpro/billing-service/app/controllers"
	"github.com/edudashpro/billing-service/internal/pkg/database"
)

// HttpRouter carries the public surface: the webhook endpoint and the health
// probe.
type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	itn := controllers.NewITNControllerFromGlobals(database.GetDB())

	app.Post("/webhooks/payfast/itn", itn.HandleITN)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
