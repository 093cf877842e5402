package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-booking/internal/auth"
	"github.com/iliyamo/travel-booking/internal/middleware"
	"github.com/iliyamo/travel-booking/internal/model"
	"github.com/iliyamo/travel-booking/internal/service"
)

const secret = "handler-secret"

type MockBookings struct{ mock.Mock }

func (m *MockBookings) Create(ctx context.Context, req service.CreateRequest) (*model.Booking, error) {
	args := m.Called(ctx, req)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

func (m *MockBookings) ConfirmPayment(ctx context.Context, actor service.Actor, id uint64, info model.PaymentInfo) (*model.Booking, *model.Payment, error) {
	args := m.Called(ctx, actor, id, info)
	b, _ := args.Get(0).(*model.Booking)
	p, _ := args.Get(1).(*model.Payment)
	return b, p, args.Error(2)
}

func (m *MockBookings) RequestCancellation(ctx context.Context, id uint64, proof service.OwnerProof, reason string) (*model.Booking, error) {
	args := m.Called(ctx, id, proof, reason)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

func (m *MockBookings) FinalizeCancellation(ctx context.Context, actor service.Actor, id uint64, target model.BookingStatus) (*model.Booking, error) {
	args := m.Called(ctx, actor, id, target)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

func (m *MockBookings) Get(ctx context.Context, actor service.Actor, id uint64) (*service.BookingView, error) {
	args := m.Called(ctx, actor, id)
	v, _ := args.Get(0).(*service.BookingView)
	return v, args.Error(1)
}

func (m *MockBookings) Lookup(ctx context.Context, number string, proof service.OwnerProof) (*service.BookingView, error) {
	args := m.Called(ctx, number, proof)
	v, _ := args.Get(0).(*service.BookingView)
	return v, args.Error(1)
}

type MockLedger struct{ mock.Mock }

func (m *MockLedger) Record(ctx context.Context, e service.Entry) (*model.MileageTransaction, error) {
	args := m.Called(ctx, e)
	tx, _ := args.Get(0).(*model.MileageTransaction)
	return tx, args.Error(1)
}

func (m *MockLedger) Balance(ctx context.Context, userID uint64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) History(ctx context.Context, userID uint64, f model.MileageFilter, p model.Page) (service.HistoryPage, error) {
	args := m.Called(ctx, userID, f, p)
	return args.Get(0).(service.HistoryPage), args.Error(1)
}

func (m *MockLedger) Audit(ctx context.Context, userID uint64) (*service.AuditReport, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*service.AuditReport)
	return r, args.Error(1)
}

type MockApps struct{ mock.Mock }

func (m *MockApps) Submit(ctx context.Context, actor service.Actor, req service.SubmitRequest) (*model.Application, error) {
	args := m.Called(ctx, actor, req)
	a, _ := args.Get(0).(*model.Application)
	return a, args.Error(1)
}

func (m *MockApps) Decide(ctx context.Context, actor service.Actor, req service.DecideRequest) (*model.Application, error) {
	args := m.Called(ctx, actor, req)
	a, _ := args.Get(0).(*model.Application)
	return a, args.Error(1)
}

func (m *MockApps) Get(ctx context.Context, actor service.Actor, t model.ApplicationType, id uint64) (*model.Application, error) {
	args := m.Called(ctx, actor, t, id)
	a, _ := args.Get(0).(*model.Application)
	return a, args.Error(1)
}

func (m *MockApps) List(ctx context.Context, actor service.Actor, t model.ApplicationType, status model.ApplicationStatus, p model.Page) (service.ApplicationPage, error) {
	args := m.Called(ctx, actor, t, status, p)
	return args.Get(0).(service.ApplicationPage), args.Error(1)
}

type MockAlerts struct{ mock.Mock }

func (m *MockAlerts) Raise(ctx context.Context, in service.AlertInput) (bool, error) {
	args := m.Called(ctx, in)
	return args.Bool(0), args.Error(1)
}

func (m *MockAlerts) MarkRead(ctx context.Context, actor service.Actor, in service.AlertInput) (*model.AdminAlert, bool, error) {
	args := m.Called(ctx, actor, in)
	a, _ := args.Get(0).(*model.AdminAlert)
	return a, args.Bool(1), args.Error(2)
}

func (m *MockAlerts) List(ctx context.Context, actor service.Actor, unreadOnly bool, p model.Page) (service.AlertPage, error) {
	args := m.Called(ctx, actor, unreadOnly, p)
	return args.Get(0).(service.AlertPage), args.Error(1)
}

type sweepFunc func(ctx context.Context) (service.SweepReport, error)

func (f sweepFunc) Sweep(ctx context.Context) (service.SweepReport, error) { return f(ctx) }

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func bearerFor(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := auth.NewAccessToken(secret, userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func do(e *echo.Echo, method, path, body, authz string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		service.ErrNotFound:                                 http.StatusNotFound,
		service.ErrValidation:                               http.StatusBadRequest,
		service.ErrUnauthorized:                             http.StatusForbidden,
		service.ErrInvalidState:                             http.StatusConflict,
		service.ErrAlreadyTerminal:                          http.StatusConflict,
		service.ErrTourNotBookable:                          http.StatusConflict,
		service.ErrConflict:                                 http.StatusConflict,
		service.ErrCapacityExceeded:                         http.StatusUnprocessableEntity,
		service.ErrInsufficientBalance:                      http.StatusUnprocessableEntity,
		service.ErrDepartureTooSoon:                         http.StatusUnprocessableEntity,
		errors.New("boom"):                                  http.StatusInternalServerError,
		errors.Join(errors.New("ctx"), service.ErrNotFound): http.StatusNotFound,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestCreateBookingGuestNeedsPassword(t *testing.T) {
	m := new(MockBookings)
	e := newEcho()
	h := NewBookingHandler(m)
	e.POST("/v1/bookings", h.Create, middleware.OptionalJWT(secret))

	body := `{"tour_id":1,"participants":2,"customer":{"name":"Kim","phone":"010","email":"kim@example.com"}}`
	rec := do(e, http.MethodPost, "/v1/bookings", body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateBookingLinksUser(t *testing.T) {
	m := new(MockBookings)
	e := newEcho()
	h := NewBookingHandler(m)
	e.POST("/v1/bookings", h.Create, middleware.OptionalJWT(secret))

	m.On("Create", mock.Anything, mock.MatchedBy(func(req service.CreateRequest) bool {
		return req.TourID == 1 && req.Participants == 2 && req.Customer.UserID != nil && *req.Customer.UserID == 7
	})).Return(&model.Booking{ID: 10, BookingNumber: "TB20260101-ABCDEF12", Status: model.BookingPaymentPending}, nil)

	body := `{"tour_id":1,"participants":2,"customer":{"name":"Kim","phone":"010","email":"kim@example.com"}}`
	rec := do(e, http.MethodPost, "/v1/bookings", body, bearerFor(t, 7, model.RoleCustomer))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"booking_number":"TB20260101-ABCDEF12"`)
	m.AssertExpectations(t)
}

func TestCreateBookingErrors(t *testing.T) {
	m := new(MockBookings)
	e := newEcho()
	h := NewBookingHandler(m)
	e.POST("/v1/bookings", h.Create, middleware.OptionalJWT(secret))

	body := `{"tour_id":1,"participants":3,"customer":{"name":"Kim","phone":"010","email":"kim@example.com","password":"1234"}}`
	m.On("Create", mock.Anything, mock.Anything).Return(nil, service.ErrCapacityExceeded).Once()
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/v1/bookings", body, "").Code)

	bad := `{"tour_id":1,"participants":0,"customer":{"name":"Kim","phone":"010","email":"kim@example.com","password":"1234"}}`
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/bookings", bad, "").Code)

	badEmail := `{"tour_id":1,"participants":1,"customer":{"name":"Kim","phone":"010","email":"nope","password":"1234"}}`
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/bookings", badEmail, "").Code)
	m.AssertExpectations(t)
}

func TestLookupAndCancel(t *testing.T) {
	m := new(MockBookings)
	e := newEcho()
	h := NewBookingHandler(m)
	e.POST("/v1/bookings/lookup", h.Lookup, middleware.OptionalJWT(secret))
	e.POST("/v1/bookings/:id/cancel", h.Cancel, middleware.OptionalJWT(secret))

	proof := service.OwnerProof{Password: "1234"}
	m.On("Lookup", mock.Anything, "TB1", proof).Return(&service.BookingView{Booking: &model.Booking{ID: 3, BookingNumber: "TB1"}}, nil)
	m.On("Lookup", mock.Anything, "TB1", service.OwnerProof{Password: "bad"}).Return(nil, service.ErrNotFound)
	m.On("RequestCancellation", mock.Anything, uint64(3), proof, "sick").Return(&model.Booking{ID: 3, Status: model.BookingCancelRequested}, nil)
	m.On("RequestCancellation", mock.Anything, uint64(4), proof, "").Return(nil, service.ErrDepartureTooSoon)

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/v1/bookings/lookup", `{"booking_number":"TB1","password":"1234"}`, "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPost, "/v1/bookings/lookup", `{"booking_number":"TB1","password":"bad"}`, "").Code)

	rec := do(e, http.MethodPost, "/v1/bookings/3/cancel", `{"password":"1234","reason":"sick"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancel_requested"`)

	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/v1/bookings/4/cancel", `{"password":"1234"}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/bookings/abc/cancel", `{}`, "").Code)
	m.AssertExpectations(t)
}

func TestAdminBookingOps(t *testing.T) {
	m := new(MockBookings)
	e := newEcho()
	h := NewBookingHandler(m)
	admin := e.Group("/v1/admin", middleware.JWTAuth(secret), middleware.RequireBackOffice())
	admin.POST("/bookings/:id/confirm-payment", h.ConfirmPayment)
	admin.POST("/bookings/:id/finalize-cancellation", h.FinalizeCancellation)

	actor := service.Actor{UserID: 1, Role: model.RoleAdmin}
	m.On("ConfirmPayment", mock.Anything, actor, uint64(5), mock.MatchedBy(func(p model.PaymentInfo) bool {
		return p.Method == "bank_transfer" && p.Amount == 2000
	})).Return(nil, nil, service.ErrInvalidState)
	m.On("FinalizeCancellation", mock.Anything, actor, uint64(5), model.BookingRefundCompleted).
		Return(&model.Booking{ID: 5, Status: model.BookingRefundCompleted}, nil)

	tok := bearerFor(t, 1, model.RoleAdmin)
	assert.Equal(t, http.StatusConflict, do(e, http.MethodPost, "/v1/admin/bookings/5/confirm-payment", `{"method":"bank_transfer","amount":2000}`, tok).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/admin/bookings/5/confirm-payment", `{"method":"barter"}`, tok).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/v1/admin/bookings/5/finalize-cancellation", `{"status":"refund_completed"}`, tok).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/admin/bookings/5/finalize-cancellation", `{"status":"payment_expired"}`, tok).Code)

	assert.Equal(t, http.StatusForbidden, do(e, http.MethodPost, "/v1/admin/bookings/5/finalize-cancellation", `{"status":"cancelled"}`, bearerFor(t, 2, model.RoleCustomer)).Code)
	m.AssertExpectations(t)
}

func TestSweepHandler(t *testing.T) {
	e := newEcho()
	e.POST("/sweep", Sweep(sweepFunc(func(context.Context) (service.SweepReport, error) {
		return service.SweepReport{Scanned: 3, Expired: 2, Skipped: 1}, nil
	})))
	rec := do(e, http.MethodPost, "/sweep", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"expired":2`)
}

func TestMileageTransactionsFilters(t *testing.T) {
	m := new(MockLedger)
	e := newEcho()
	h := NewMileageHandler(m)
	e.GET("/v1/me/mileage/transactions", h.Transactions, middleware.JWTAuth(secret))

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.On("History", mock.Anything, uint64(7), mock.MatchedBy(func(f model.MileageFilter) bool {
		return f.Type == model.MileageDeposit && f.From != nil && f.From.Equal(from) && f.To == nil
	}), model.Page{Number: 2, Size: 10}).Return(service.HistoryPage{Items: []model.MileageTransaction{}, Page: 2, PageSize: 10}, nil)

	tok := bearerFor(t, 7, model.RoleCustomer)
	rec := do(e, http.MethodGet, "/v1/me/mileage/transactions?type=deposit&from=2026-01-01&page=2&page_size=10", "", tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/v1/me/mileage/transactions?type=gift", "", tok).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/v1/me/mileage/transactions?to=yesterday", "", tok).Code)
	m.AssertExpectations(t)
}

func TestMileageBalanceAndAdjust(t *testing.T) {
	m := new(MockLedger)
	e := newEcho()
	h := NewMileageHandler(m)
	e.GET("/v1/me/mileage", h.Balance, middleware.JWTAuth(secret))
	e.POST("/v1/admin/users/:id/mileage/adjust", h.Adjust, middleware.JWTAuth(secret), middleware.RequireBackOffice())

	m.On("Balance", mock.Anything, uint64(7)).Return(int64(4000), nil)
	m.On("Record", mock.Anything, service.Entry{UserID: 7, Type: model.MileageUsage, Amount: 500, Description: "tour discount"}).
		Return(nil, service.ErrInsufficientBalance)

	rec := do(e, http.MethodGet, "/v1/me/mileage", "", bearerFor(t, 7, model.RoleCustomer))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":7,"mileage":4000}`, rec.Body.String())

	admin := bearerFor(t, 1, model.RoleStaff)
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/v1/admin/users/7/mileage/adjust", `{"type":"usage","amount":500,"description":"tour discount"}`, admin).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/admin/users/7/mileage/adjust", `{"type":"deposit","amount":500,"description":"x"}`, admin).Code)
	longRef := `{"type":"reward","amount":500,"description":"x","reference_id":"` + strings.Repeat("r", 65) + `"}`
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/admin/users/7/mileage/adjust", longRef, admin).Code)
	m.AssertExpectations(t)
}

func TestApplicationSubmitAndDecide(t *testing.T) {
	m := new(MockApps)
	e := newEcho()
	h := NewApplicationHandler(m)
	e.POST("/v1/me/applications", h.Submit, middleware.JWTAuth(secret))
	e.POST("/v1/admin/applications/:type/:id/decide", h.Decide, middleware.JWTAuth(secret), middleware.RequireBackOffice())

	customer := service.Actor{UserID: 7, Role: model.RoleCustomer}
	m.On("Submit", mock.Anything, customer, service.SubmitRequest{Type: model.ApplicationDeposit, Amount: 5000}).
		Return(&model.Application{ID: 1, Type: model.ApplicationDeposit, Amount: 5000, Status: model.ApplicationPending}, nil)
	admin := service.Actor{UserID: 1, Role: model.RoleAdmin}
	m.On("Decide", mock.Anything, admin, service.DecideRequest{Type: model.ApplicationWithdrawal, ID: 9, Status: model.ApplicationCompleted, Memo: "paid"}).
		Return(nil, service.ErrInsufficientBalance)

	rec := do(e, http.MethodPost, "/v1/me/applications", `{"type":"deposit","amount":5000}`, bearerFor(t, 7, model.RoleCustomer))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	tok := bearerFor(t, 1, model.RoleAdmin)
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/v1/admin/applications/withdrawal/9/decide", `{"status":"completed","memo":"paid"}`, tok).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/admin/applications/loan/9/decide", `{"status":"completed"}`, tok).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/admin/applications/deposit/9/decide", `{"status":"pending"}`, tok).Code)
	m.AssertExpectations(t)
}

func TestApplicationList(t *testing.T) {
	m := new(MockApps)
	e := newEcho()
	h := NewApplicationHandler(m)
	e.GET("/v1/admin/applications", h.List, middleware.JWTAuth(secret))

	admin := service.Actor{UserID: 1, Role: model.RoleAdmin}
	m.On("List", mock.Anything, admin, model.ApplicationWithdrawal, model.ApplicationPending, model.Page{}).
		Return(service.ApplicationPage{Items: []model.Application{}, Page: 1, PageSize: 20}, nil)

	tok := bearerFor(t, 1, model.RoleAdmin)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/admin/applications?type=withdrawal&status=pending", "", tok).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/v1/admin/applications?status=done", "", tok).Code)
	m.AssertExpectations(t)
}

func TestAlertRaiseAndRead(t *testing.T) {
	m := new(MockAlerts)
	e := newEcho()
	h := NewAlertHandler(m)
	e.POST("/v1/admin/alerts", h.Raise, middleware.JWTAuth(secret))
	e.POST("/v1/admin/alerts/read", h.MarkRead, middleware.JWTAuth(secret))

	in := service.AlertInput{Type: "custom", ReferenceID: "ops-1", Title: "Bus delayed"}
	m.On("Raise", mock.Anything, in).Return(true, nil).Once()
	m.On("Raise", mock.Anything, in).Return(false, nil).Once()
	admin := service.Actor{UserID: 1, Role: model.RoleAdmin}
	m.On("MarkRead", mock.Anything, admin, service.AlertInput{Type: "new_booking", ReferenceID: "TB1"}).
		Return(&model.AdminAlert{ID: 4, AlertType: "new_booking", ReferenceID: "TB1", IsRead: true}, false, nil)

	tok := bearerFor(t, 1, model.RoleAdmin)
	body := `{"alert_type":"custom","reference_id":"ops-1","title":"Bus delayed"}`
	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/admin/alerts", body, tok).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/v1/admin/alerts", body, tok).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/admin/alerts", `{"alert_type":"custom"}`, tok).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/admin/alerts", `{"alert_type":"`+strings.Repeat("x", 33)+`","reference_id":"ops-1"}`, tok).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/admin/alerts", `{"alert_type":"custom","reference_id":"`+strings.Repeat("9", 65)+`"}`, tok).Code)

	rec := do(e, http.MethodPost, "/v1/admin/alerts/read", `{"alert_type":"new_booking","reference_id":"TB1"}`, tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_read":true`)
	m.AssertExpectations(t)
}

func TestReady(t *testing.T) {
	e := newEcho()
	e.GET("/healthz", Health)
	e.GET("/ok", Ready(pinger{}))
	e.GET("/down", Ready(pinger{err: errors.New("dial tcp")}))

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/ok", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/down", "", "").Code)
}

func TestInternalErrorsAreMasked(t *testing.T) {
	m := new(MockBookings)
	e := newEcho()
	h := NewBookingHandler(m)
	e.GET("/v1/admin/bookings/:id", h.Get, middleware.JWTAuth(secret))
	m.On("Get", mock.Anything, service.Actor{UserID: 1, Role: model.RoleAdmin}, uint64(8)).Return(nil, errors.New("connection reset"))

	rec := do(e, http.MethodGet, "/v1/admin/bookings/8", "", bearerFor(t, 1, model.RoleAdmin))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
