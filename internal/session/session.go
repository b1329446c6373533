// Package session reads the authenticated identity out of the verified JWT
// that the auth middleware stores in Fiber locals. The is_staff claim is
// minted at sign-in and trusted verbatim here; it is never re-derived from
// the staff allow-list per request.
package session

import (
	"errors"

	"github.com/cipher-systems/report-portal/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrNoIdentity = errors.New("no authenticated identity in request")

// Claims returns the verified JWT claims, if any.
func Claims(c *fiber.Ctx) (jwt.MapClaims, bool) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	return claims, ok
}

// CurrentUser builds the acting user from session claims. Returns
// ErrNoIdentity for anonymous requests.
func CurrentUser(c *fiber.Ctx) (*models.User, error) {
	claims, ok := Claims(c)
	if !ok {
		return nil, ErrNoIdentity
	}

	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrNoIdentity
	}

	username, _ := claims["username"].(string)
	discordID, _ := claims["discord_id"].(string)
	isStaff, _ := claims["is_staff"].(bool)

	return &models.User{
		ID:        id,
		DiscordID: discordID,
		Username:  username,
		IsStaff:   isStaff,
	}, nil
}

// IsStaff reports whether the request carries a staff session.
func IsStaff(c *fiber.Ctx) bool {
	claims, ok := Claims(c)
	if !ok {
		return false
	}
	isStaff, _ := claims["is_staff"].(bool)
	return isStaff
}
