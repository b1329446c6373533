package middleware

import (
	"github.com/cipher-systems/report-portal/internal/dto"
	"github.com/cipher-systems/report-portal/internal/session"
	"github.com/gofiber/fiber/v2"
)

// StaffRequired gates staff-only routes on the is_staff session claim. The
// claim is computed against the allow-list at sign-in and cached in the
// token, so no database or config lookup happens here.
func StaffRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := session.Claims(c); !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		if !session.IsStaff(c) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Staff access required",
			})
		}
		return c.Next()
	}
}
