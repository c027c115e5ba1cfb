package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/calvora/postpilot/internal/repository"
)

type AccountsHandler struct {
	ac repository.SocialAccountRepository
}

func NewAccountsHandler(ac repository.SocialAccountRepository) *AccountsHandler {
	return &AccountsHandler{ac: ac}
}

func (h *AccountsHandler) ListSocialAccounts(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)

	accounts, err := h.ac.ListInfoByWorkspaceID(c.Context(), workspaceID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list social accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountsHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	accountID := c.QueryInt("id", 0)

	isValid, err := h.ac.CheckByWorkspaceID(c.Context(), int64(accountID), workspaceID)
	if err != nil || !isValid {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Account doesn't exist",
		})
	}

	if err := h.ac.Remove(c.Context(), int64(accountID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
