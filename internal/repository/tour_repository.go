package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/model"
)

// TourRepo gives access to the tours table.  The seat counter
// current_participants is changed only by ReserveSeatsTx and ReleaseSeatsTx,
// each a single bounded UPDATE so the 0 ≤ current ≤ max invariant holds
// even without a prior read.
type TourRepo struct {
	db *sqlx.DB
}

// NewTourRepo returns a TourRepo bound to db.
func NewTourRepo(db *sqlx.DB) *TourRepo { return &TourRepo{db: db} }

const tourColumns = `id, title, max_participants, current_participants, price, status, departure_date, created_at, updated_at`

// GetByID loads a tour.  ErrNotFound when absent.
func (r *TourRepo) GetByID(ctx context.Context, id uint64) (*model.Tour, error) {
	var t model.Tour
	if err := r.db.GetContext(ctx, &t, `SELECT `+tourColumns+` FROM tours WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// GetForUpdateTx loads a tour and takes a row lock on it for the rest of tx.
func (r *TourRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Tour, error) {
	var t model.Tour
	if err := tx.GetContext(ctx, &t, `SELECT `+tourColumns+` FROM tours WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ReserveSeatsTx adds n to the reserved-seat counter if the result stays
// within max_participants.  It returns ErrCapacityExceeded when it would not
// and ErrNotFound when the tour does not exist.
func (r *TourRepo) ReserveSeatsTx(ctx context.Context, tx *sqlx.Tx, tourID uint64, n int) error {
	const q = `UPDATE tours SET current_participants = current_participants + ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND current_participants + ? <= max_participants`
	res, err := tx.ExecContext(ctx, q, n, tourID, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	exists, err := r.existsTx(ctx, tx, tourID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrCapacityExceeded
}

// ReleaseSeatsTx subtracts n from the reserved-seat counter, flooring at
// zero.  ErrNotFound when the tour does not exist.
func (r *TourRepo) ReleaseSeatsTx(ctx context.Context, tx *sqlx.Tx, tourID uint64, n int) error {
	const q = `UPDATE tours SET current_participants = current_participants - LEAST(current_participants, ?), updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, n, tourID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	// Zero rows changed: either the tour is missing or the counter was already 0.
	exists, err := r.existsTx(ctx, tx, tourID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (r *TourRepo) existsTx(ctx context.Context, tx *sqlx.Tx, tourID uint64) (bool, error) {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM tours WHERE id = ?`, tourID); err != nil {
		return false, err
	}
	return n > 0, nil
}
