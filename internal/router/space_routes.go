package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-rental/internal/handler"
	"github.com/iliyamo/parking-rental/internal/middleware"
	"github.com/iliyamo/parking-rental/internal/model"
)

// RegisterSpaces registers the public browse endpoints and the host-only
// space and availability window management.
//
// Public reads accept an optional bearer token so the limiter can key on the
// user.  List, search and detail go through the response cache; availability
// is never cached since bookings change it.
func RegisterSpaces(e *echo.Echo, s *handler.SpaceHandler, a *handler.AvailabilityHandler, jwtSecret string,
	cache echo.MiddlewareFunc, limits Limits) {
	pub := e.Group("/v1/spaces", chain(middleware.OptionalJWT(jwtSecret), limits.Global)...)
	cached := chain(cache)
	pub.GET("", s.List, cached...)
	// registered before /:id so "search" is not parsed as an id
	pub.GET("/search", s.Search, cached...)
	pub.GET("/:id", s.Get, cached...)
	pub.GET("/:id/availability", a.Listing)
	pub.POST("/:id/check-availability", a.Check)

	host := e.Group("/v1/spaces", chain(middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleHost), limits.Global)...)
	host.POST("", s.Create)
	host.PUT("/:id", s.Update)
	host.PATCH("/:id", s.Update) // partial update, same handler
	host.DELETE("/:id", s.Delete)

	// ---- Availability windows ----
	host.POST("/:id/availability", a.CreateWindow)
	host.PUT("/:id/availability/:windowId", a.UpdateWindow)
	host.DELETE("/:id/availability/:windowId", a.DeleteWindow)

	mine := e.Group("/v1/user", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleHost))
	mine.GET("/spaces", s.Mine)
}
