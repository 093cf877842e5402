package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/model"
)

// MileageRepo is the append-only store of ledger rows.  It exposes no update
// or delete.
type MileageRepo struct {
	db *sqlx.DB
}

// NewMileageRepo returns a MileageRepo bound to db.
func NewMileageRepo(db *sqlx.DB) *MileageRepo { return &MileageRepo{db: db} }

const mileageColumns = `id, user_id, transaction_type, amount, balance_before, balance_after, description, reference_id, created_at`

// InsertTx appends t and populates t.ID.  A second row with the same
// (transaction_type, reference_id) yields ErrDuplicate.
func (r *MileageRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, t *model.MileageTransaction) error {
	const q = `INSERT INTO mileage_transactions (user_id, transaction_type, amount, balance_before, balance_after, description, reference_id, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.UserID, t.TransactionType, t.Amount, t.BalanceBefore, t.BalanceAfter,
		t.Description, t.ReferenceID, t.CreatedAt)
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
	t.ID = uint64(id)
	return nil
}

// List returns one page of a user's history, newest first, together with
// the total number of rows matching the filter.
func (r *MileageRepo) List(ctx context.Context, userID uint64, f model.MileageFilter, limit, offset int) ([]model.MileageTransaction, int, error) {
	where := []string{"user_id = ?"}
	args := []interface{}{userID}
	if f.Type != "" {
		where = append(where, "transaction_type = ?")
		args = append(args, f.Type)
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		where = append(where, "created_at < ?")
		args = append(args, *f.To)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM mileage_transactions WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}
	rows := []model.MileageTransaction{}
	q := `SELECT ` + mileageColumns + ` FROM mileage_transactions WHERE ` + cond + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &rows, q, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListAllForUser returns the user's full history in replay order.  Writes
// for one user serialize on the user row lock, so id order is commit order;
// created_at comes from the application clock and is not used for ordering.
func (r *MileageRepo) ListAllForUser(ctx context.Context, userID uint64) ([]model.MileageTransaction, error) {
	rows := []model.MileageTransaction{}
	q := `SELECT ` + mileageColumns + ` FROM mileage_transactions WHERE user_id = ? ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, err
	}
	return rows, nil
}
