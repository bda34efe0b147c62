package handlers

import (
	"github.com/attractapp/attract/middleware"
	"github.com/attractapp/attract/services"
	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) ConfirmPayment(c *fiber.Ctx) error {
	var req services.ConfirmPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if req.UserID != "" && req.UserID != middleware.CurrentUserID(c) {
		return forbidden(c, "Cannot confirm a payment for another user")
	}

	result, err := h.payments.ConfirmPayment(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, result)
}

func (h *PaymentHandler) ListMyPayments(c *fiber.Ctx) error {
	list, err := h.payments.ListPayments(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, list)
}
