package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-booking/internal/handler"
	"github.com/iliyamo/travel-booking/internal/middleware"
)

// RegisterCustomer registers endpoints under /v1/me.  Any authenticated role
// may call them; each handler acts on the caller's own account only.
func RegisterCustomer(e *echo.Echo, m *handler.MileageHandler, a *handler.ApplicationHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/me",
		middleware.JWTAuth(jwtSecret),
		limit,
	)

	// ---- Mileage ----
	g.GET("/mileage", m.Balance)
	g.GET("/mileage/transactions", m.Transactions)

	// ---- Applications ----
	g.POST("/applications", a.Submit)
	g.GET("/applications/:type/:id", a.Get)
}
