package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-booking/internal/model"
	"github.com/iliyamo/travel-booking/internal/service"
)

// AlertAPI is the back-office surface of service.AlertService.
type AlertAPI interface {
	Raise(ctx context.Context, in service.AlertInput) (bool, error)
	MarkRead(ctx context.Context, actor service.Actor, in service.AlertInput) (*model.AdminAlert, bool, error)
	List(ctx context.Context, actor service.Actor, unreadOnly bool, p model.Page) (service.AlertPage, error)
}

// AlertHandler serves the back-office alert inbox.
type AlertHandler struct {
	Alerts AlertAPI
}

// NewAlertHandler returns an AlertHandler backed by a.
func NewAlertHandler(a AlertAPI) *AlertHandler {
	if a == nil {
		panic("nil alert service passed to NewAlertHandler")
	}
	return &AlertHandler{Alerts: a}
}

// List handles GET /v1/admin/alerts?unread=true.
func (h *AlertHandler) List(c echo.Context) error {
	unread, _ := strconv.ParseBool(c.QueryParam("unread"))
	page, err := h.Alerts.List(c.Request().Context(), actorFrom(c), unread, pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Raise handles POST /v1/admin/alerts.  201 when a row was written, 200 when
// an alert with the same type and reference already existed.
func (h *AlertHandler) Raise(c echo.Context) error {
	var in service.AlertInput
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	created, err := h.Alerts.Raise(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"created": created})
}

// MarkRead handles POST /v1/admin/alerts/read.  A missing alert is created
// in the read state.
func (h *AlertHandler) MarkRead(c echo.Context) error {
	var in service.AlertInput
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	alert, created, err := h.Alerts.MarkRead(c.Request().Context(), actorFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"alert": alert, "created": created})
}
