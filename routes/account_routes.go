package routes

import (
	"github.com/attractapp/attract/handlers"
	"github.com/gofiber/fiber/v2"
)

func AccountRoutes(app *fiber.App, h *handlers.AccountHandler, protected fiber.Handler) {
	api := app.Group("/api/v1")

	account := api.Group("/account", protected)
	account.Post("/delete", h.DeleteAccount)
}
