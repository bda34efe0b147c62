package handlers

import (
	"github.com/attractapp/attract/middleware"
	"github.com/attractapp/attract/services"
	"github.com/gofiber/fiber/v2"
)

type AccountHandler struct {
	accounts *services.AccountService
}

func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type DeleteAccountRequest struct {
	UserID   string  `json:"userId"`
	Password *string `json:"password"`
}

// DeleteAccount erases the authenticated user. The body may repeat the user
// id, but only the caller's own account can be deleted.
func (h *AccountHandler) DeleteAccount(c *fiber.Ctx) error {
	var req DeleteAccountRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Cannot parse JSON")
		}
	}

	userID := middleware.CurrentUserID(c)
	if req.UserID != "" && req.UserID != userID {
		return forbidden(c, "Cannot delete another user's account")
	}

	result, err := h.accounts.DeleteUserData(c.UserContext(), services.DeleteUserDataRequest{
		UserID:   userID,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, result)
}
