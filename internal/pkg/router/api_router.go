package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/edudashpro/billing-service/app/controllers"
	"github.com/edudashpro/billing-service/internal/pkg/database"
	"github.com/edudashpro/billing-service/internal/pkg/middleware"
)

// ApiRouter carries the API-key-protected ops endpoints.
type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "EduDash billing service API",
		})
	})

	admin := controllers.NewAdminControllerFromGlobals(database.GetDB())

	v1 := api.Group("/v1/admin", middleware.AdminAPIKeyMiddleware())
	v1.Get("/transactions", admin.HandleListTransactions)
	v1.Get("/transactions/:ref", admin.HandleGetTransaction)
	v1.Get("/subscriptions/:scope/:uuid", admin.HandleGetSubscription)
	v1.Post("/reconcile/:scope/:uuid", admin.HandleReconcileOwner)
	v1.Get("/events", admin.HandleListEvents)
	v1.Get("/queue/stats", admin.HandleQueueStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
