package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postpilot/postpilot/internal/service"
)

type MediaHandler struct {
	s service.GraphReadService
}

func NewMediaHandler(s service.GraphReadService) *MediaHandler {
	return &MediaHandler{s: s}
}

// GetMedia proxies published-media metadata from the provider.
func (h *MediaHandler) GetMedia(c *fiber.Ctx) error {
	userID := GetUserID(c)
	mediaID := c.Query("id")

	media, err := h.s.MediaInfo(c.Context(), userID, mediaID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to get media",
		})
	}

	return c.Status(fiber.StatusOK).JSON(media)
}

// GetAccountProfile resolves the provider-side id of the connected account.
func (h *MediaHandler) GetAccountProfile(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountID, err := h.s.AccountID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to resolve account",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"account_id": accountID,
	})
}
