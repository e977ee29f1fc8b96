package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// RequireAdmin guards routes reserved for the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return util.NewUnauthorized("authentication required")
		}
		if !actor.IsAdmin() {
			return util.NewForbidden("admin role required")
		}
		return c.Next()
	}
}
