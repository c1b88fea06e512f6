package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/service"
	"github.com/postpilot/postpilot/pkg/utils"
)

const sessionDuration = 30 * 24 * time.Hour

type AccountHandler struct {
	s   service.AccountService
	cfg config.Config
}

func NewAccountHandler(cfg config.Config, s service.AccountService) *AccountHandler {
	return &AccountHandler{s: s, cfg: cfg}
}

// ConnectInstagram sends the user into the provider's authorization flow.
func (h *AccountHandler) ConnectInstagram(c *fiber.Ctx) error {
	authURL := "https://api.instagram.com/oauth/authorize" +
		"?client_id=" + h.cfg.InstagramClientID +
		"&redirect_uri=" + h.cfg.InstagramRedirectURI +
		"&scope=instagram_business_basic,instagram_business_content_publish" +
		"&response_type=code"
	return c.Redirect(authURL)
}

// CallbackHandler finishes the OAuth flow: the exchanged identity signs the
// user in, so this route runs outside the session middleware and issues the
// session cookie itself.
func (h *AccountHandler) CallbackHandler(c *fiber.Ctx) error {
	code := c.Query("code")

	userID, err := h.s.InstagramCallback(c.Context(), code)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	token, err := utils.GenerateToken(h.cfg.SecretKey, strconv.FormatInt(userID, 10), sessionDuration)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to create session",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionDuration.Seconds()),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return c.Redirect(h.cfg.FrontendURL + "/accounts")
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accounts, err := h.s.ListAccounts(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountHandler) RemoveAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountID, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account id",
		})
	}

	if err := h.s.RemoveAccount(c.Context(), userID, accountID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
