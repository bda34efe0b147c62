package handlers

import (
	"errors"

	"github.com/attractapp/attract/services"
	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[services.Kind]int{
	services.KindInvalidArgument:   fiber.StatusBadRequest,
	services.KindUnauthenticated:   fiber.StatusUnauthorized,
	services.KindPermissionDenied:  fiber.StatusForbidden,
	services.KindNotFound:          fiber.StatusNotFound,
	services.KindAlreadyExists:     fiber.StatusConflict,
	services.KindResourceExhausted: fiber.StatusTooManyRequests,
	services.KindInternal:          fiber.StatusInternalServerError,
}

func respondOK(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

// respondError writes the {success, code, message} error body. Errors that do
// not carry a services.Error are reported as a generic internal failure.
func respondError(c *fiber.Ctx, err error) error {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = &services.Error{Kind: services.KindInternal, Message: "Internal server error", Err: err}
	}

	status, ok := kindStatus[svcErr.Kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"code":    svcErr.Kind,
		"message": svcErr.Message,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return respondError(c, &services.Error{Kind: services.KindInvalidArgument, Message: msg})
}

func forbidden(c *fiber.Ctx, msg string) error {
	return respondError(c, &services.Error{Kind: services.KindPermissionDenied, Message: msg})
}
