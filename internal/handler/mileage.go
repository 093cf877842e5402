package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-booking/internal/model"
	"github.com/iliyamo/travel-booking/internal/service"
)

// LedgerAPI is the read and adjustment surface of service.Ledger.
type LedgerAPI interface {
	Record(ctx context.Context, e service.Entry) (*model.MileageTransaction, error)
	Balance(ctx context.Context, userID uint64) (int64, error)
	History(ctx context.Context, userID uint64, f model.MileageFilter, p model.Page) (service.HistoryPage, error)
	Audit(ctx context.Context, userID uint64) (*service.AuditReport, error)
}

// MileageHandler serves balance, history, audit and manual adjustments.
type MileageHandler struct {
	Ledger LedgerAPI
}

// NewMileageHandler returns a MileageHandler backed by l.
func NewMileageHandler(l LedgerAPI) *MileageHandler {
	if l == nil {
		panic("nil ledger passed to NewMileageHandler")
	}
	return &MileageHandler{Ledger: l}
}

// Balance handles GET /v1/me/mileage.
func (h *MileageHandler) Balance(c echo.Context) error {
	actor := actorFrom(c)
	if actor.UserID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bal, err := h.Ledger.Balance(c.Request().Context(), actor.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": actor.UserID, "mileage": bal})
}

// Transactions handles GET /v1/me/mileage/transactions?type=&from=&to=&page=&page_size=.
func (h *MileageHandler) Transactions(c echo.Context) error {
	actor := actorFrom(c)
	if actor.UserID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var f model.MileageFilter
	if raw := c.QueryParam("type"); raw != "" {
		t, err := model.ParseMileageTransactionType(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		f.Type = t
	}
	from, err := parseTimeParam(c.QueryParam("from"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from"})
	}
	to, err := parseTimeParam(c.QueryParam("to"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to"})
	}
	f.From, f.To = from, to

	page, err := h.Ledger.History(c.Request().Context(), actor.UserID, f, pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Audit handles GET /v1/admin/users/:id/mileage/audit.  An inconsistent
// ledger is still a 200; the report says what is wrong.
func (h *MileageHandler) Audit(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	report, err := h.Ledger.Audit(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

type adjustRequest struct {
	Type        string `json:"type" validate:"required,oneof=reward usage"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"required,max=255"`
	ReferenceID string `json:"reference_id" validate:"max=64"`
}

// Adjust handles POST /v1/admin/users/:id/mileage/adjust.  Only reward and
// usage entries may be posted by hand; deposits and withdrawals come from
// applications.
func (h *MileageHandler) Adjust(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req adjustRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	tx, err := h.Ledger.Record(c.Request().Context(), service.Entry{
		UserID:      id,
		Type:        model.MileageTransactionType(req.Type),
		Amount:      req.Amount,
		Description: req.Description,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, tx)
}
