package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-booking/internal/model"
	"github.com/iliyamo/travel-booking/internal/service"
)

// BookingAPI is the part of service.BookingService the HTTP layer uses.
type BookingAPI interface {
	Create(ctx context.Context, req service.CreateRequest) (*model.Booking, error)
	ConfirmPayment(ctx context.Context, actor service.Actor, bookingID uint64, info model.PaymentInfo) (*model.Booking, *model.Payment, error)
	RequestCancellation(ctx context.Context, bookingID uint64, proof service.OwnerProof, reason string) (*model.Booking, error)
	FinalizeCancellation(ctx context.Context, actor service.Actor, bookingID uint64, target model.BookingStatus) (*model.Booking, error)
	Get(ctx context.Context, actor service.Actor, id uint64) (*service.BookingView, error)
	Lookup(ctx context.Context, number string, proof service.OwnerProof) (*service.BookingView, error)
}

// BookingHandler serves the reservation endpoints.  Guests and logged-in
// customers share the public routes; a guest proves ownership with the
// password chosen at booking time.
type BookingHandler struct {
	Bookings BookingAPI
}

// NewBookingHandler returns a BookingHandler backed by b.
func NewBookingHandler(b BookingAPI) *BookingHandler {
	if b == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b}
}

type createBookingRequest struct {
	TourID       uint64             `json:"tour_id" validate:"required"`
	Participants int                `json:"participants" validate:"required,gt=0"`
	Customer     model.CustomerInfo `json:"customer"`
}

// Create handles POST /v1/bookings and returns 201 with the booking.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	actor := actorFrom(c)
	if actor.UserID != 0 {
		uid := actor.UserID
		req.Customer.UserID = &uid
	} else if req.Customer.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "guest bookings need a password"})
	}
	b, err := h.Bookings.Create(c.Request().Context(), service.CreateRequest{
		TourID:       req.TourID,
		Participants: req.Participants,
		Customer:     req.Customer,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

type lookupRequest struct {
	BookingNumber string `json:"booking_number" validate:"required,max=32"`
	Password      string `json:"password" validate:"max=72"`
}

// Lookup handles POST /v1/bookings/lookup.  The password travels in the
// body rather than the query string.
func (h *BookingHandler) Lookup(c echo.Context) error {
	var req lookupRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	v, err := h.Bookings.Lookup(c.Request().Context(), req.BookingNumber, service.OwnerProof{Actor: actorFrom(c), Password: req.Password})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

type cancelRequest struct {
	Password string `json:"password" validate:"max=72"`
	Reason   string `json:"reason" validate:"max=500"`
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req cancelRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.RequestCancellation(c.Request().Context(), id, service.OwnerProof{Actor: actorFrom(c), Password: req.Password}, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Get handles GET /v1/admin/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	v, err := h.Bookings.Get(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// ConfirmPayment handles POST /v1/admin/bookings/:id/confirm-payment.
func (h *BookingHandler) ConfirmPayment(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var info model.PaymentInfo
	if err := bind(c, &info); err != nil {
		return respondError(c, err)
	}
	b, p, err := h.Bookings.ConfirmPayment(c.Request().Context(), actorFrom(c), id, info)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": b, "payment": p})
}

type finalizeRequest struct {
	Status string `json:"status" validate:"required,oneof=cancelled refund_completed payment_completed"`
}

// FinalizeCancellation handles POST /v1/admin/bookings/:id/finalize-cancellation.
func (h *BookingHandler) FinalizeCancellation(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req finalizeRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.FinalizeCancellation(c.Request().Context(), actorFrom(c), id, model.BookingStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// SweepAPI runs one payment expiry sweep.
type SweepAPI interface {
	Sweep(ctx context.Context) (service.SweepReport, error)
}

// Sweep returns a handler for POST /v1/admin/bookings/sweep-expired.  Partial
// failures are reported in the body with status 200.
func Sweep(s SweepAPI) echo.HandlerFunc {
	return func(c echo.Context) error {
		report, err := s.Sweep(c.Request().Context())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, report)
	}
}
