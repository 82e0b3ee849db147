package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-rental/internal/handler"
	"github.com/iliyamo/parking-rental/internal/middleware"
	"github.com/iliyamo/parking-rental/internal/model"
)

// Limits groups the rate-limit middlewares per scope.  A nil entry means the
// scope is not limited.
type Limits struct {
	Global  echo.MiddlewareFunc
	Auth    echo.MiddlewareFunc
	Booking echo.MiddlewareFunc
}

func chain(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// RegisterRoutes registers routes that do not require authentication and
// are not versioned: the liveness probe and the readiness probe that pings
// the database.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers all authentication-related routes.  Session
// operations (register, login, refresh, logout) live under /v1/auth and are
// rate limited by the auth scope; /me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limits Limits) {
	g := e.Group("/v1/auth", chain(limits.Auth)...)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// new access token, refresh token untouched
	g.POST("/refresh-access", a.RefreshAccess)
	// accepts a refresh token in the body or revokes every session of the
	// bearer
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleClient, model.RoleHost))
	auth.GET("/me", a.Me)
}
