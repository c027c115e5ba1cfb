package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/calvora/postpilot/internal/service"
	"github.com/calvora/postpilot/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := validate.Struct(&pc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	postID, err := h.s.Create(c.Context(), workspaceID, userID, &pc)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post scheduled successfully",
		"post_id": postID,
	})
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	postID := c.QueryInt("id", 0)

	var pu transfer.PostUpdate
	if err := c.BodyParser(&pu); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := validate.Struct(&pu); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.s.Update(c.Context(), workspaceID, int64(postID), &pu); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post updated successfully",
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, err := h.s.Info(c.Context(), int64(postID), workspaceID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to get post",
			})
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), workspaceID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

// ListDestinations exposes per-destination statuses and error messages,
// the visibility surface for partial failures.
func (h *PostHandler) ListDestinations(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	postID := c.QueryInt("id", 0)

	destinations, err := h.s.Destinations(c.Context(), int64(postID), workspaceID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list destinations",
		})
	}

	return c.Status(fiber.StatusOK).JSON(destinations)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	workspaceID := GetWorkspaceID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), workspaceID, int64(postID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove post",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
