package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/logger"
	"github.com/iliyamo/travel-booking/internal/metrics"
	"github.com/iliyamo/travel-booking/internal/model"
	"github.com/iliyamo/travel-booking/internal/repository"
)

// Ledger is the only writer of users.mileage.  Every balance change appends
// a mileage_transactions row carrying the balance before and after, and the
// user row is locked for the duration so concurrent debits serialize.
type Ledger struct {
	db      *sqlx.DB
	users   UserStore
	entries MileageStore
	now     Clock
}

// NewLedger returns a Ledger writing through users and entries.
func NewLedger(db *sqlx.DB, users UserStore, entries MileageStore) *Ledger {
	return &Ledger{db: db, users: users, entries: entries, now: utcNow}
}

// errDuplicateReference marks an entry whose (type, reference) already exists.
var errDuplicateReference = errors.New("reference already recorded")

// Entry describes one balance change.  Amount is a positive magnitude; the
// sign comes from Type.  ReferenceID, when set, must be unique per Type.
type Entry struct {
	UserID      uint64
	Type        model.MileageTransactionType
	Amount      int64
	Description string
	ReferenceID string
}

// Record applies e in its own transaction and returns the written row.
func (l *Ledger) Record(ctx context.Context, e Entry) (*model.MileageTransaction, error) {
	var out *model.MileageTransaction
	err := repository.WithTx(ctx, l.db, func(tx *sqlx.Tx) error {
		var err error
		out, err = l.RecordTx(ctx, tx, e)
		return err
	})
	if err != nil {
		recordLedgerRejection(err)
		return nil, err
	}
	metrics.RecordLedgerEntry(string(e.Type))
	return out, nil
}

// RecordTx applies e inside tx.  The caller must commit; on any error the
// caller must roll back so that neither the row nor the balance change
// survives.  Metrics are left to the caller, which passes any error to
// recordLedgerRejection after the transaction ends.
func (l *Ledger) RecordTx(ctx context.Context, tx *sqlx.Tx, e Entry) (*model.MileageTransaction, error) {
	if _, err := model.ParseMileageTransactionType(string(e.Type)); err != nil {
		return nil, validationf("%v", err)
	}
	if e.Amount <= 0 {
		return nil, validationf("amount must be positive, got %d", e.Amount)
	}

	u, err := l.users.GetForUpdateTx(ctx, tx, e.UserID)
	if err != nil {
		return nil, err
	}
	after := u.Mileage + e.Type.Sign()*e.Amount
	if after < 0 {
		return nil, fmt.Errorf("%w: balance %d, %s of %d", ErrInsufficientBalance, u.Mileage, e.Type, e.Amount)
	}

	row := &model.MileageTransaction{
		UserID:          e.UserID,
		TransactionType: e.Type,
		Amount:          e.Amount,
		BalanceBefore:   u.Mileage,
		BalanceAfter:    after,
		Description:     e.Description,
		CreatedAt:       l.now(),
	}
	if e.ReferenceID != "" {
		ref := e.ReferenceID
		row.ReferenceID = &ref
	}
	if err := l.entries.InsertTx(ctx, tx, row); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %w: %s %s", ErrConflict, errDuplicateReference, e.Type, e.ReferenceID)
		}
		return nil, err
	}
	if err := l.users.UpdateMileageTx(ctx, tx, e.UserID, after); err != nil {
		return nil, err
	}
	return row, nil
}

// recordLedgerRejection counts a ledger write refused by a business rule.
func recordLedgerRejection(err error) {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		metrics.RecordLedgerRejection("insufficient_balance")
	case errors.Is(err, errDuplicateReference):
		metrics.RecordLedgerRejection("duplicate_reference")
	}
}

// Balance returns the user's current mileage.
func (l *Ledger) Balance(ctx context.Context, userID uint64) (int64, error) {
	u, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.Mileage, nil
}

// HistoryPage is one page of a user's transactions, newest first.
type HistoryPage struct {
	Items    []model.MileageTransaction `json:"items"`
	Total    int                        `json:"total"`
	Page     int                        `json:"page"`
	PageSize int                        `json:"page_size"`
}

// History lists the user's transactions filtered by f.
func (l *Ledger) History(ctx context.Context, userID uint64, f model.MileageFilter, p model.Page) (HistoryPage, error) {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return HistoryPage{}, validationf("'to' is before 'from'")
	}
	limit, offset := p.Normalize()
	items, total, err := l.entries.List(ctx, userID, f, limit, offset)
	if err != nil {
		return HistoryPage{}, err
	}
	if items == nil {
		items = []model.MileageTransaction{}
	}
	return HistoryPage{Items: items, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

// AuditReport is the result of replaying a user's ledger.
type AuditReport struct {
	UserID        uint64        `json:"user_id"`
	Entries       int           `json:"entries"`
	ReplayedTotal int64         `json:"replayed_total"`
	StoredBalance int64         `json:"stored_balance"`
	Consistent    bool          `json:"consistent"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
	CheckedAt     time.Time     `json:"checked_at"`
}

// Discrepancy points at a ledger row that breaks the chain.
type Discrepancy struct {
	TransactionID uint64 `json:"transaction_id,omitempty"`
	Problem       string `json:"problem"`
}

// Audit replays the user's transactions in insertion (id) order and checks that
// each row starts where the previous one ended, that each row's arithmetic
// holds, and that the final balance equals users.mileage.
func (l *Ledger) Audit(ctx context.Context, userID uint64) (*AuditReport, error) {
	u, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := l.entries.ListAllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	r := &AuditReport{UserID: userID, Entries: len(rows), StoredBalance: u.Mileage, CheckedAt: l.now()}

	var running int64
	for _, t := range rows {
		if t.BalanceBefore != running {
			r.Discrepancies = append(r.Discrepancies, Discrepancy{
				TransactionID: t.ID,
				Problem:       fmt.Sprintf("balance_before %d, expected %d", t.BalanceBefore, running),
			})
		}
		if want := t.BalanceBefore + t.TransactionType.Sign()*t.Amount; t.BalanceAfter != want {
			r.Discrepancies = append(r.Discrepancies, Discrepancy{
				TransactionID: t.ID,
				Problem:       fmt.Sprintf("balance_after %d, expected %d", t.BalanceAfter, want),
			})
		}
		running += t.TransactionType.Sign() * t.Amount
	}
	r.ReplayedTotal = running
	if running != u.Mileage {
		r.Discrepancies = append(r.Discrepancies, Discrepancy{
			Problem: fmt.Sprintf("stored balance %d, replayed %d", u.Mileage, running),
		})
	}
	r.Consistent = len(r.Discrepancies) == 0
	if !r.Consistent {
		logger.Errorf("ledger audit: user %d has %d discrepancies", userID, len(r.Discrepancies))
	}
	return r, nil
}
