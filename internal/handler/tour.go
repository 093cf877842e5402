package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-booking/internal/service"
)

// AvailabilityAPI reads a tour's seat summary.
type AvailabilityAPI interface {
	Availability(ctx context.Context, tourID uint64) (service.Availability, error)
}

// TourAvailability returns a handler for GET /v1/tours/:id/availability.
func TourAvailability(a AvailabilityAPI) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c, "id")
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tour id"})
		}
		av, err := a.Availability(c.Request().Context(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, av)
	}
}
