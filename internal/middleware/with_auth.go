package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-annotation-api/internal/utils"
)

// Auth role constants used by WithAuth.
const (
	AuthRoleAny       = "any"
	AuthRoleAdmin     = "admin"
	AuthRoleAnnotator = "annotator"
)

// AuthOptions configures WithAuth.
type AuthOptions struct {
	Role string
}

// WithAuth guards a single handler. Annotator routes additionally need a
// non-zero subject since every annotator action is keyed by the annotator id.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	return func(c *fiber.Ctx) error {
		currentRole := normalizeRoleValue(c.Locals(LocalUserRole))
		if currentRole == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		switch role {
		case AuthRoleAny:
		case AuthRoleAnnotator:
			userID, _ := c.Locals(LocalUserID).(uint)
			if currentRole != AuthRoleAnnotator || userID == 0 {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		default:
			if currentRole != role {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		}

		return handler(c)
	}
}
