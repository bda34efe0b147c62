package routes

import (
	"github.com/attractapp/attract/handlers"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(app *fiber.App, h *handlers.AuthHandler) {
	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/verification-code", h.SendVerificationCode)
	auth.Post("/verify", h.VerifyCode)
}
