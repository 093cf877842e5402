package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/travel-booking/internal/handler"
	"github.com/iliyamo/travel-booking/internal/middleware"
)

// RegisterRoutes registers the health checks and the Prometheus scrape endpoint.
// None of them require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	// Liveness for load balancers.
	e.GET("/healthz", handler.Health)
	// Readiness also checks the database.
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers the guest-facing endpoints.  Booking routes accept
// an optional JWT: when present the booking is linked to (or proven by) the
// caller.  limit is applied to the whole group; cache only to the
// availability read.
func RegisterPublic(e *echo.Echo, b *handler.BookingHandler, tours handler.AvailabilityAPI, jwtSecret string, limit, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", limit)

	// Availability is safe to serve slightly stale.
	g.GET("/tours/:id/availability", handler.TourAvailability(tours), cache)

	bookings := g.Group("/bookings", middleware.OptionalJWT(jwtSecret))
	bookings.POST("", b.Create)
	// Lookup takes the password in the body, so it is a POST.
	bookings.POST("/lookup", b.Lookup)
	bookings.POST("/:id/cancel", b.Cancel)
}
