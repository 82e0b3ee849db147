package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-rental/internal/handler"
	"github.com/iliyamo/parking-rental/internal/middleware"
	"github.com/iliyamo/parking-rental/internal/model"
)

// RegisterBookings registers the booking endpoints.  Every route needs a
// valid JWT; hosts may book other hosts' spaces, so both roles are accepted
// and the service decides who may do what to a given booking.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limits Limits) {
	g := e.Group("/v1/bookings", chain(
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleClient, model.RoleHost),
		limits.Booking,
	)...)
	g.POST("", b.Create)
	g.GET("", b.List)
	g.GET("/:id", b.Get)
	g.PATCH("/:id", b.Act)
	g.DELETE("/:id", b.Delete)
}

// RegisterReviews registers review listing (public) and creation.
func RegisterReviews(e *echo.Echo, r *handler.ReviewHandler, jwtSecret string, limits Limits) {
	pub := e.Group("/v1/reviews", chain(limits.Global)...)
	pub.GET("", r.List)
	pub.GET("/booking/:bookingId", r.ForBooking)
	pub.POST("", r.Create, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleClient, model.RoleHost))
}

// RegisterDashboard registers the host dashboard.
func RegisterDashboard(e *echo.Echo, d *handler.DashboardHandler, jwtSecret string) {
	g := e.Group("/v1/dashboard", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleHost))
	g.GET("/stats", d.Stats)
}
