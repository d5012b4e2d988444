// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-housing/internal/handler"
	"github.com/iliyamo/college-housing/internal/middleware"
)

// Auth bundles what the protected groups need to resolve the caller.
type Auth struct {
	Secret string
	Users  middleware.UserLookup
}

func (a Auth) required() echo.MiddlewareFunc { return middleware.JWTAuth(a.Secret, a.Users) }
func (a Auth) optional() echo.MiddlewareFunc { return middleware.OptionalAuth(a.Secret, a.Users) }

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterUsers mounts /v1/users: signup, login, tokens, passwords, Google
// login, the caller's profile and favorites.
func RegisterUsers(e *echo.Echo, a *handler.AuthHandler, u *handler.UserHandler, ap *handler.AppointmentHandler, auth Auth) {
	g := e.Group("/v1/users")
	g.POST("/signup", a.Signup)
	g.POST("/verifyMe", a.VerifyEmail)
	g.POST("/resendVerification", a.ResendVerification)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout, auth.optional())
	g.GET("/login/google", a.GoogleLogin)
	g.GET("/login/google/callback", a.GoogleCallback)
	g.POST("/forgotPassword", a.ForgotPassword)
	g.PATCH("/resetPassword/:code", a.ResetPassword)

	p := g.Group("", auth.required())
	p.GET("/me", u.Me)
	p.PATCH("/updateMyPassword", a.UpdatePassword)
	p.PATCH("/updateMe", u.UpdateMe)
	p.DELETE("/deleteMe", u.DeleteMe)
	p.GET("/favorites", u.ListFavorites)
	p.POST("/favorites", u.AddFavorite)
	p.DELETE("/favorites/:unitId", u.RemoveFavorite)
	p.GET("/my-appointments", ap.ListMine)
}
