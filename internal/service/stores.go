package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/model"
)

// The store interfaces below are satisfied by the repository package.
// Methods ending in Tx run inside a transaction opened with repository.WithTx.

// TourStore reads tours and moves their seat counter.
type TourStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Tour, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Tour, error)
	ReserveSeatsTx(ctx context.Context, tx *sqlx.Tx, tourID uint64, n int) error
	ReleaseSeatsTx(ctx context.Context, tx *sqlx.Tx, tourID uint64, n int) error
}

// BookingStore persists bookings.  UpdateStatusTx is the only status writer.
type BookingStore interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetByNumber(ctx context.Context, number string) (*model.Booking, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Booking, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, b *model.Booking, from model.BookingStatus) error
	ListOverdue(ctx context.Context, now time.Time, after model.OverdueRef, limit int) ([]model.OverdueRef, error)
}

// PaymentStore persists payment records, at most one per booking.
type PaymentStore interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, p *model.Payment) error
	GetByBookingIDTx(ctx context.Context, tx *sqlx.Tx, bookingID uint64) (*model.Payment, error)
	GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error)
}

// UserStore reads users and writes their mileage balance.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.User, error)
	UpdateMileageTx(ctx context.Context, tx *sqlx.Tx, id uint64, mileage int64) error
}

// MileageStore appends and reads mileage ledger rows.
type MileageStore interface {
	InsertTx(ctx context.Context, tx *sqlx.Tx, t *model.MileageTransaction) error
	List(ctx context.Context, userID uint64, f model.MileageFilter, limit, offset int) ([]model.MileageTransaction, int, error)
	ListAllForUser(ctx context.Context, userID uint64) ([]model.MileageTransaction, error)
}

// ApplicationStore persists deposit and withdrawal applications.
type ApplicationStore interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, a *model.Application) error
	GetByID(ctx context.Context, t model.ApplicationType, id uint64) (*model.Application, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, t model.ApplicationType, id uint64) (*model.Application, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, a *model.Application, from model.ApplicationStatus) error
	List(ctx context.Context, t model.ApplicationType, status model.ApplicationStatus, limit, offset int) ([]model.Application, int, error)
}

// AlertStore persists admin alerts keyed by (type, reference).
type AlertStore interface {
	Insert(ctx context.Context, a *model.AdminAlert) (bool, error)
	InsertTx(ctx context.Context, tx *sqlx.Tx, a *model.AdminAlert) (bool, error)
	UpsertRead(ctx context.Context, a *model.AdminAlert, adminID uint64, at time.Time) (bool, error)
	GetByKey(ctx context.Context, alertType, referenceID string) (*model.AdminAlert, error)
	List(ctx context.Context, unreadOnly bool, limit, offset int) ([]model.AdminAlert, int, error)
}

// Actor is the authenticated caller of an operation.  The zero value is an
// anonymous guest.
type Actor struct {
	UserID uint64
	Role   string
}

func (a Actor) backOffice() bool { return model.IsBackOffice(a.Role) }

func requireBackOffice(a Actor) error {
	if !a.backOffice() {
		return ErrUnauthorized
	}
	return nil
}

// Clock returns the current time.  Services default to UTC wall time.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
