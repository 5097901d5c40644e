package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/sr-service/pkg/util/errorutil"
)

// RequireAuthenticated ensures the caller holds a valid principal.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireStaff ensures the caller has staff privilege (agent or admin).
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.User.IsStaff() {
			return apperrors.NewForbidden("staff privilege required")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the caller has the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.User.IsAdmin() {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}
