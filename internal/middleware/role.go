package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/apperr"
)

// RequireRole allows the request only when the role stored by JWTAuth is
// one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxRole).(string)
			if !ok || !allowed[role] {
				return apperr.Forbidden("you do not have permission to perform this action")
			}
			return next(c)
		}
	}
}
