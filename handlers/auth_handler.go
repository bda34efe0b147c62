package handlers

import (
	"github.com/attractapp/attract/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	verification *services.VerificationService
}

func NewAuthHandler(verification *services.VerificationService) *AuthHandler {
	return &AuthHandler{verification: verification}
}

type SendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

func (h *AuthHandler) SendVerificationCode(c *fiber.Ctx) error {
	var req SendCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}

	result, err := h.verification.SendCode(c.UserContext(), req.PhoneNumber)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, result)
}

func (h *AuthHandler) VerifyCode(c *fiber.Ctx) error {
	var req services.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}

	result, err := h.verification.SignIn(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, result)
}
