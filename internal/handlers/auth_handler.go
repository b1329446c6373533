package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cipher-systems/report-portal/internal/config"
	"github.com/cipher-systems/report-portal/internal/dto"
	"github.com/cipher-systems/report-portal/internal/middleware"
	"github.com/cipher-systems/report-portal/internal/services"
	"github.com/cipher-systems/report-portal/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const stateCookie = "oauth_state"

type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{authService: authService, cfg: cfg}
}

// Login starts the Discord OAuth flow with a CSRF state nonce.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	state := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Expires:  time.Now().Add(5 * time.Minute),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(h.authService.AuthCodeURL(state), fiber.StatusFound)
}

// Callback completes the OAuth handshake and issues the session cookie.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" || state != c.Cookies(stateCookie) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid OAuth state",
		})
	}
	c.ClearCookie(stateCookie)

	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Missing authorization code",
		})
	}

	user, token, err := h.authService.SignIn(c.Context(), code)
	if err != nil {
		if errors.Is(err, services.ErrOAuthExchange) {
			slog.Warn("discord sign-in rejected", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Discord authorization failed",
			})
		}
		slog.Error("sign-in failed", "action", "auth_callback", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Sign-in failed",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Expires:  time.Now().Add(h.cfg.SessionExpiry),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	if user.IsStaff {
		return c.Redirect("/staff", fiber.StatusFound)
	}
	return c.Redirect("/", fiber.StatusFound)
}

// Me returns the persisted profile of the signed-in user.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, err := session.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	user, err := h.authService.UserByID(actor.ID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to load profile",
		})
	}

	return c.JSON(dto.SessionResponse{Authenticated: true, User: user})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.ClearCookie(middleware.SessionCookie)
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}
