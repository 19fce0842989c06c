package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/church-platform/services/chat-service/internal/auth"
	"github.com/yourorg/church-platform/services/chat-service/internal/models"
)

// JWTAuth validates the bearer token and stores user_id/role in locals.
func JWTAuth(verifier *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "missing authorization"})
		}
		claims, err := verifier.Verify(parts[1])
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "invalid token"})
		}
		c.Locals("user_id", claims.UserID)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}

// AdminOnly must run after JWTAuth.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if role, _ := c.Locals("role").(string); role != models.RoleAdmin {
			return c.Status(http.StatusForbidden).JSON(fiber.Map{"success": false, "message": "admin only"})
		}
		return c.Next()
	}
}
