package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/handler"
	"github.com/iliyamo/college-housing/internal/middleware"
	"github.com/iliyamo/college-housing/internal/model"
)

// RegisterAdmin mounts /v1/admin.  Everything except login requires a
// valid JWT and the admin role.
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler, u *handler.UserHandler, un *handler.UnitHandler, auth Auth) {
	e.POST("/v1/admin/login", a.Login)

	g := e.Group(
		"/v1/admin",
		auth.required(),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Users ----
	g.GET("/allUsers", u.ListUsers)
	g.GET("/user/:id", u.GetUser)
	g.DELETE("/user/:id", u.SuspendUser)
	g.PATCH("/user/:id", u.ActivateUser)
	g.GET("/suspendedUsers", u.ListSuspended)

	// ---- Units ----
	g.PATCH("/verifyUnit/:id", un.VerifyUnitEmail)
	g.GET("/unit/:id", un.AdminGetUnit)
	g.DELETE("/unit/:id", un.SuspendUnit)
	g.PATCH("/unit/:id", un.ActivateUnit)

	// ---- Moderation requests ----
	g.GET("/requests", un.ListRequests)
	g.PATCH("/requests/:id", un.Decide)
}
