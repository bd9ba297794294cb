package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequireRole guards a whole route group with the checks WithAuth applies to a
// single handler.
func RequireRole(role string) fiber.Handler {
	return WithAuth(func(c *fiber.Ctx) error {
		return c.Next()
	}, AuthOptions{Role: role})
}

// normalizeRoleValue reads a role from token claims or request locals. Anything
// other than a string counts as no role.
func normalizeRoleValue(value interface{}) string {
	role, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(role))
}
