package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/model"
)

// UserRepo reads users and maintains the cached mileage column.  The cache is
// written only through UpdateMileageTx, which the ledger calls in the same
// transaction as the ledger insert.
type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, email, name, role, mileage, created_at, updated_at`

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	if err := r.DB.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetForUpdateTx fetches a user and row-locks it, serialising concurrent
// balance changes for that user only.
func (r *UserRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.User, error) {
	var u model.User
	if err := tx.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UpdateMileageTx overwrites the cached balance.
func (r *UserRepo) UpdateMileageTx(ctx context.Context, tx *sqlx.Tx, id uint64, mileage int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET mileage = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, mileage, id)
	return err
}
