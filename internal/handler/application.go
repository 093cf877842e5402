package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-booking/internal/model"
	"github.com/iliyamo/travel-booking/internal/service"
)

// ApplicationAPI is the HTTP-facing part of service.ApplicationService.
type ApplicationAPI interface {
	Submit(ctx context.Context, actor service.Actor, req service.SubmitRequest) (*model.Application, error)
	Decide(ctx context.Context, actor service.Actor, req service.DecideRequest) (*model.Application, error)
	Get(ctx context.Context, actor service.Actor, t model.ApplicationType, id uint64) (*model.Application, error)
	List(ctx context.Context, actor service.Actor, t model.ApplicationType, status model.ApplicationStatus, p model.Page) (service.ApplicationPage, error)
}

// ApplicationHandler serves mileage deposit and withdrawal applications.
type ApplicationHandler struct {
	Apps ApplicationAPI
}

// NewApplicationHandler returns an ApplicationHandler backed by a.
func NewApplicationHandler(a ApplicationAPI) *ApplicationHandler {
	if a == nil {
		panic("nil application service passed to NewApplicationHandler")
	}
	return &ApplicationHandler{Apps: a}
}

type submitRequest struct {
	Type   string          `json:"type" validate:"required,oneof=deposit withdrawal"`
	Amount int64           `json:"amount" validate:"required,gt=0"`
	Bank   *model.BankInfo `json:"bank"`
}

// Submit handles POST /v1/me/applications.
func (h *ApplicationHandler) Submit(c echo.Context) error {
	var req submitRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	app, err := h.Apps.Submit(c.Request().Context(), actorFrom(c), service.SubmitRequest{
		Type:   model.ApplicationType(req.Type),
		Amount: req.Amount,
		Bank:   req.Bank,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, app)
}

// Get handles GET /v1/me/applications/:type/:id.
func (h *ApplicationHandler) Get(c echo.Context) error {
	t, err := model.ParseApplicationType(c.Param("type"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid application id"})
	}
	app, err := h.Apps.Get(c.Request().Context(), actorFrom(c), t, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// List handles GET /v1/admin/applications?type=&status=&page=&page_size=.
// type defaults to deposit.
func (h *ApplicationHandler) List(c echo.Context) error {
	t := model.ApplicationDeposit
	if raw := c.QueryParam("type"); raw != "" {
		parsed, err := model.ParseApplicationType(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		t = parsed
	}
	var status model.ApplicationStatus
	if raw := c.QueryParam("status"); raw != "" {
		parsed, err := model.ParseApplicationStatus(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		status = parsed
	}
	page, err := h.Apps.List(c.Request().Context(), actorFrom(c), t, status, pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

type decideRequest struct {
	Status string `json:"status" validate:"required,oneof=processing completed rejected"`
	Memo   string `json:"memo" validate:"max=500"`
}

// Decide handles POST /v1/admin/applications/:type/:id/decide.
func (h *ApplicationHandler) Decide(c echo.Context) error {
	t, err := model.ParseApplicationType(c.Param("type"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid application id"})
	}
	var req decideRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	app, err := h.Apps.Decide(c.Request().Context(), actorFrom(c), service.DecideRequest{
		Type:   t,
		ID:     id,
		Status: model.ApplicationStatus(req.Status),
		Memo:   req.Memo,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}
