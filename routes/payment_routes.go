package routes

import (
	"github.com/attractapp/attract/handlers"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App, h *handlers.PaymentHandler, protected fiber.Handler) {
	api := app.Group("/api/v1")

	payments := api.Group("/payments", protected)
	payments.Post("/confirm", h.ConfirmPayment)
	payments.Get("", h.ListMyPayments)
}
