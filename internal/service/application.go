package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/metrics"
	"github.com/iliyamo/travel-booking/internal/model"
	"github.com/iliyamo/travel-booking/internal/queue"
	"github.com/iliyamo/travel-booking/internal/repository"
)

// ApplicationService handles customer deposit and withdrawal applications.
// A completed decision posts exactly one ledger row referencing the
// application id, in the same transaction as the status change.
type ApplicationService struct {
	db            *sqlx.DB
	apps          ApplicationStore
	users         UserStore
	ledger        *Ledger
	alerts        *AlertService
	notify        *Dispatcher
	minDeposit    int64
	minWithdrawal int64
	strictBalance bool
	now           Clock
}

// ApplicationLimits are the smallest amounts accepted per application type.
// With StrictBalanceCheck a withdrawal above the current balance is refused
// at submission; otherwise it is accepted and flagged in the admin alert.
type ApplicationLimits struct {
	DepositMin         int64
	WithdrawalMin      int64
	StrictBalanceCheck bool
}

// NewApplicationService wires the application flow to its stores and the ledger.
func NewApplicationService(db *sqlx.DB, apps ApplicationStore, users UserStore, ledger *Ledger, alerts *AlertService, notify *Dispatcher, limits ApplicationLimits) *ApplicationService {
	return &ApplicationService{
		db:            db,
		apps:          apps,
		users:         users,
		ledger:        ledger,
		alerts:        alerts,
		notify:        notify,
		minDeposit:    limits.DepositMin,
		minWithdrawal: limits.WithdrawalMin,
		strictBalance: limits.StrictBalanceCheck,
		now:           utcNow,
	}
}

// SubmitRequest is a customer's application.
type SubmitRequest struct {
	Type   model.ApplicationType
	Amount int64
	Bank   *model.BankInfo
}

// Submit files a pending application for the acting customer.  The balance
// check for withdrawals is advisory; the ledger decides when the application
// is completed.
func (s *ApplicationService) Submit(ctx context.Context, actor Actor, req SubmitRequest) (*model.Application, error) {
	if actor.UserID == 0 {
		return nil, ErrUnauthorized
	}
	if _, err := model.ParseApplicationType(string(req.Type)); err != nil {
		return nil, validationf("%v", err)
	}
	minimum := s.minDeposit
	if req.Type == model.ApplicationWithdrawal {
		minimum = s.minWithdrawal
	}
	if req.Amount <= 0 || req.Amount < minimum {
		return nil, validationf("%s amount must be at least %d", req.Type, minimum)
	}

	var (
		bank      *model.BankInfo
		shortfall string
	)
	if req.Type == model.ApplicationWithdrawal {
		if req.Bank == nil || strings.TrimSpace(req.Bank.BankName) == "" ||
			strings.TrimSpace(req.Bank.AccountNumber) == "" || strings.TrimSpace(req.Bank.AccountHolder) == "" {
			return nil, validationf("withdrawal requires bank name, account number and account holder")
		}
		bank = req.Bank

		u, err := s.users.GetByID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if u.Mileage < req.Amount {
			if s.strictBalance {
				return nil, fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientBalance, u.Mileage, req.Amount)
			}
			shortfall = fmt.Sprintf(" Exceeds current balance %d.", u.Mileage)
		}
	}

	var (
		app       *model.Application
		alertType = model.AlertDepositRequest
		alerted   bool
	)
	if req.Type == model.ApplicationWithdrawal {
		alertType = model.AlertWithdrawalRequest
	}
	err := repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		now := s.now()
		app = &model.Application{
			Type:      req.Type,
			UserID:    actor.UserID,
			Amount:    req.Amount,
			Status:    model.ApplicationPending,
			Bank:      bank,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.apps.CreateTx(ctx, tx, app); err != nil {
			return err
		}
		var err error
		alerted, err = s.alerts.RaiseTx(ctx, tx, AlertInput{
			Type:        alertType,
			ReferenceID: strconv.FormatUint(app.ID, 10),
			Detail:      fmt.Sprintf("User %d, amount %d.%s", app.UserID, app.Amount, shortfall),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordAlert(alertType, alerted)
	s.notify.Dispatch(applicationEvent(queue.KindApplicationSubmitted, app))
	return app, nil
}

// DecideRequest moves an application to Status.
type DecideRequest struct {
	Type   model.ApplicationType
	ID     uint64
	Status model.ApplicationStatus
	Memo   string
}

// Decide applies an admin decision.  Moving to completed records the ledger
// entry; if the ledger rejects it (for example insufficient balance) the
// whole decision is rolled back and the application keeps its status.
func (s *ApplicationService) Decide(ctx context.Context, actor Actor, req DecideRequest) (*model.Application, error) {
	if err := requireBackOffice(actor); err != nil {
		return nil, err
	}
	if _, err := model.ParseApplicationType(string(req.Type)); err != nil {
		return nil, validationf("%v", err)
	}
	if _, err := model.ParseApplicationStatus(string(req.Status)); err != nil {
		return nil, validationf("%v", err)
	}

	var app *model.Application
	err := repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		app, err = s.apps.GetForUpdateTx(ctx, tx, req.Type, req.ID)
		if err != nil {
			return err
		}
		from := app.Status
		if !from.CanTransitionTo(req.Status) {
			return invalidStatef("application %d is %s, cannot move to %s", app.ID, from, req.Status)
		}

		if req.Status == model.ApplicationCompleted {
			_, err := s.ledger.RecordTx(ctx, tx, Entry{
				UserID:      app.UserID,
				Type:        app.Type.LedgerType(),
				Amount:      app.Amount,
				Description: fmt.Sprintf("%s application #%d", app.Type, app.ID),
				ReferenceID: strconv.FormatUint(app.ID, 10),
			})
			if err != nil {
				return err
			}
		}

		now := s.now()
		processedBy := actor.UserID
		app.Status = req.Status
		app.AdminMemo = req.Memo
		app.ProcessedBy = &processedBy
		app.ProcessedAt = &now
		app.UpdatedAt = now
		return s.apps.UpdateStatusTx(ctx, tx, app, from)
	})
	if err != nil {
		if req.Status == model.ApplicationCompleted {
			recordLedgerRejection(err)
		}
		return nil, err
	}

	metrics.RecordApplicationDecision(string(app.Type), string(app.Status))
	if app.Status == model.ApplicationCompleted {
		metrics.RecordLedgerEntry(string(app.Type.LedgerType()))
	}
	s.notify.Dispatch(applicationEvent(queue.KindApplicationDecided, app))
	return app, nil
}

// Get returns one application.  Customers may only read their own.
func (s *ApplicationService) Get(ctx context.Context, actor Actor, t model.ApplicationType, id uint64) (*model.Application, error) {
	if _, err := model.ParseApplicationType(string(t)); err != nil {
		return nil, validationf("%v", err)
	}
	app, err := s.apps.GetByID(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if !actor.backOffice() && app.UserID != actor.UserID {
		return nil, ErrNotFound
	}
	return app, nil
}

// ApplicationPage is one page of applications, newest first.
type ApplicationPage struct {
	Items    []model.Application `json:"items"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// List returns applications of type t, optionally filtered by status.
func (s *ApplicationService) List(ctx context.Context, actor Actor, t model.ApplicationType, status model.ApplicationStatus, p model.Page) (ApplicationPage, error) {
	if err := requireBackOffice(actor); err != nil {
		return ApplicationPage{}, err
	}
	if _, err := model.ParseApplicationType(string(t)); err != nil {
		return ApplicationPage{}, validationf("%v", err)
	}
	if status != "" {
		if _, err := model.ParseApplicationStatus(string(status)); err != nil {
			return ApplicationPage{}, validationf("%v", err)
		}
	}
	limit, offset := p.Normalize()
	items, total, err := s.apps.List(ctx, t, status, limit, offset)
	if err != nil {
		return ApplicationPage{}, err
	}
	if items == nil {
		items = []model.Application{}
	}
	return ApplicationPage{Items: items, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

func applicationEvent(kind string, a *model.Application) queue.Event {
	return queue.Event{
		Kind:            kind,
		UserID:          a.UserID,
		ApplicationID:   a.ID,
		ApplicationType: string(a.Type),
		Status:          string(a.Status),
		Amount:          a.Amount,
	}
}
