package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/model"
)

// PaymentRepo persists payments.  Rows are inserted once and never updated.
type PaymentRepo struct {
	db *sqlx.DB
}

// NewPaymentRepo returns a PaymentRepo bound to db.
func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, booking_id, amount, method, status, paid_at, bank_name, depositor_name, transaction_ref, created_at`

// CreateTx inserts p and populates p.ID.  A second payment for the same
// booking yields ErrDuplicate.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (booking_id, amount, method, status, paid_at, bank_name, depositor_name, transaction_ref, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.BookingID, p.Amount, p.Method, p.Status, p.PaidAt,
		p.BankName, p.DepositorName, p.TransactionRef, p.CreatedAt)
	if err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByBookingIDTx loads the payment of a booking inside tx.
func (r *PaymentRepo) GetByBookingIDTx(ctx context.Context, tx *sqlx.Tx, bookingID uint64) (*model.Payment, error) {
	var p model.Payment
	if err := tx.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = ?`, bookingID); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetByBookingID loads the payment of a booking.
func (r *PaymentRepo) GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = ?`, bookingID); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
