package middleware

// identity.go holds the context keys set by the auth middleware and the
// helpers handlers use to read the authenticated user back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/model"
)

// Context keys set by JWTAuth and OptionalAuth.
const (
	CtxUser   = "user"
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(CtxUser).(model.User)
	return u, ok
}

func setUser(c echo.Context, u model.User) {
	c.Set(CtxUser, u)
	c.Set(CtxUserID, u.ID)
	c.Set(CtxRole, u.Role)
}

// userID returns the caller's id as a string, or "anon" for anonymous
// requests.  It is used to partition rate limit buckets.
func userID(c echo.Context) string {
	if id, ok := c.Get(CtxUserID).(uint64); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
