package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/calvora/postpilot/internal/service"
	"github.com/calvora/postpilot/internal/transfer"
)

type KeysHandler struct {
	ks service.ApiKeyService
}

func NewKeysHandler(ks service.ApiKeyService) *KeysHandler {
	return &KeysHandler{ks: ks}
}

func (h *KeysHandler) CreateKey(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)

	var kc transfer.ApiKeyCreation
	if err := c.BodyParser(&kc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validate.Struct(kc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.ks.Create(c.Context(), workspaceID, kc.KeyName); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *KeysHandler) ListKeys(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)

	keys, err := h.ks.List(c.Context(), workspaceID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(keys)
}

func (h *KeysHandler) RemoveKey(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	keyID := c.QueryInt("id", 0)

	if err := h.ks.Remove(c.Context(), workspaceID, int64(keyID)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
