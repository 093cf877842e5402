package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-booking/internal/handler"
	"github.com/iliyamo/travel-booking/internal/middleware"
)

// AdminHandlers groups the back-office handlers.
type AdminHandlers struct {
	Bookings     *handler.BookingHandler
	Sweeper      handler.SweepAPI
	Applications *handler.ApplicationHandler
	Alerts       *handler.AlertHandler
	Mileage      *handler.MileageHandler
}

// RegisterAdmin registers back-office endpoints under /v1/admin.  All routes
// require a valid JWT with the admin or staff role.
func RegisterAdmin(e *echo.Echo, h AdminHandlers, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireBackOffice(),
	)

	// ---- Bookings ----
	// Static path first so it is not taken for an :id.
	g.POST("/bookings/sweep-expired", handler.Sweep(h.Sweeper))
	g.GET("/bookings/:id", h.Bookings.Get)
	g.POST("/bookings/:id/confirm-payment", h.Bookings.ConfirmPayment)
	g.POST("/bookings/:id/finalize-cancellation", h.Bookings.FinalizeCancellation)

	// ---- Applications ----
	g.GET("/applications", h.Applications.List)
	g.POST("/applications/:type/:id/decide", h.Applications.Decide)

	// ---- Alerts ----
	g.GET("/alerts", h.Alerts.List)
	g.POST("/alerts", h.Alerts.Raise)
	g.POST("/alerts/read", h.Alerts.MarkRead)

	// ---- Mileage ----
	g.GET("/users/:id/mileage/audit", h.Mileage.Audit)
	g.POST("/users/:id/mileage/adjust", h.Mileage.Adjust)
}
