package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/handler"
)

// RegisterUnits mounts /v1/units with the nested appointment and review
// routes.  Public reads pass through the response cache; writes require a
// valid JWT.  Ownership is checked by the services.
func RegisterUnits(e *echo.Echo, u *handler.UnitHandler, ap *handler.AppointmentHandler, rv *handler.ReviewHandler, auth Auth, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/units")
	g.GET("", u.ListUnits, cache)
	g.GET("/my-units", u.MyUnits, auth.required())
	g.GET("/:unitId", u.GetUnit, cache, auth.optional())
	g.GET("/:unitId/reviews", rv.List, cache)

	p := g.Group("", auth.required())
	p.POST("", u.SubmitUnit)
	p.PATCH("/:unitId", u.UpdateUnit)
	p.DELETE("/:unitId", u.DeactivateUnit)

	// ---- Appointments ----
	p.POST("/:unitId/appointments", ap.Book)
	p.GET("/:unitId/appointments", ap.ListForUnit)
	p.PATCH("/:unitId/appointments/:number/confirm", ap.Confirm)
	p.PATCH("/:unitId/appointments/:number/refuse", ap.Refuse)
	p.PATCH("/:unitId/appointments/:number/cancel", ap.Cancel)
	p.PATCH("/:unitId/appointments/:number/complete", ap.Complete)

	// ---- Reviews ----
	p.POST("/:unitId/reviews", rv.Add)
	p.PATCH("/:unitId/reviews/:reviewId", rv.Update)
	p.DELETE("/:unitId/reviews/:reviewId", rv.Delete)
}
