package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postpilot/postpilot/internal/service"
)

type AssistantHandler struct {
	s service.AssistantService
}

func NewAssistantHandler(s service.AssistantService) *AssistantHandler {
	return &AssistantHandler{s: s}
}

type assistantRequest struct {
	Message string `json:"message"`
}

func (h *AssistantHandler) Ask(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req assistantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}

	answer, err := h.s.Answer(c.Context(), userID, req.Message)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Assistant is unavailable, please try again",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"answer": answer})
}

func (h *AssistantHandler) DraftCaption(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req assistantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}

	caption, err := h.s.DraftCaption(c.Context(), userID, req.Message)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Assistant is unavailable, please try again",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"caption": caption})
}
