package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/calvora/postpilot/internal/service"
)

type MediaHandler struct {
	ms service.MediaService
}

func NewMediaHandler(ms service.MediaService) *MediaHandler {
	return &MediaHandler{ms: ms}
}

func (h *MediaHandler) UploadMedia(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid multipart form",
		})
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files provided",
		})
	}

	assets, err := h.ms.Upload(c.Context(), workspaceID, files)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(assets)
}
