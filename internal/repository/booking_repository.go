package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/model"
)

// BookingRepo provides persistence for bookings.  Status changes go through
// UpdateStatusTx, which is guarded on the expected previous status so a
// concurrent writer that got there first turns into ErrConflict instead of a
// lost update.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, booking_number, tour_id, user_id, customer_name, customer_phone, customer_email,
	password_hash, participants, total_amount, status, payment_due_date, cancel_reason, cancel_requested_at,
	created_at, updated_at`

// CreateTx inserts b and populates b.ID.  A clashing booking number yields
// ErrDuplicate.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (booking_number, tour_id, user_id, customer_name, customer_phone, customer_email,
	           password_hash, participants, total_amount, status, payment_due_date, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.BookingNumber, b.TourID, b.UserID, b.CustomerName, b.CustomerPhone, b.CustomerEmail,
		b.PasswordHash, b.Participants, b.TotalAmount, b.Status, b.PaymentDueDate, b.CreatedAt, b.UpdatedAt)
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
	b.ID = uint64(id)
	return nil
}

// GetByID loads a booking without locking.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// GetByNumber loads a booking by its human-readable number.
func (r *BookingRepo) GetByNumber(ctx context.Context, number string) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE booking_number = ?`, number); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// GetForUpdateTx loads a booking and row-locks it for the rest of tx.  Every
// state transition starts here so its precondition is checked against the
// committed state.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Booking, error) {
	var b model.Booking
	if err := tx.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// UpdateStatusTx writes b's status and status-dependent columns, provided
// the row is still in status from.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, b *model.Booking, from model.BookingStatus) error {
	const q = `UPDATE bookings SET status = ?, payment_due_date = ?, cancel_reason = ?, cancel_requested_at = ?, updated_at = ?
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, b.Status, b.PaymentDueDate, b.CancelReason, b.CancelRequestedAt, b.UpdatedAt, b.ID, from)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// ListOverdue returns up to limit payment_pending bookings whose payment
// window closed before now, oldest deadline first.  Only rows strictly after
// the after cursor are returned, so rows a caller failed to expire do not
// hold back the next page.
func (r *BookingRepo) ListOverdue(ctx context.Context, now time.Time, after model.OverdueRef, limit int) ([]model.OverdueRef, error) {
	q := `SELECT id, payment_due_date FROM bookings
	      WHERE status = ? AND payment_due_date < ?`
	args := []interface{}{model.BookingPaymentPending, now}
	if after.ID != 0 {
		q += ` AND (payment_due_date > ? OR (payment_due_date = ? AND id > ?))`
		args = append(args, after.PaymentDueDate, after.PaymentDueDate, after.ID)
	}
	q += ` ORDER BY payment_due_date, id LIMIT ?`
	args = append(args, limit)

	refs := []model.OverdueRef{}
	if err := r.db.SelectContext(ctx, &refs, q, args...); err != nil {
		return nil, err
	}
	return refs, nil
}
