package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/model"
)

// ApplicationRepo stores deposit and withdrawal applications.  The two kinds
// live in separate tables; every method takes the type to pick the table.
type ApplicationRepo struct {
	db *sqlx.DB
}

// NewApplicationRepo returns an ApplicationRepo bound to db.
func NewApplicationRepo(db *sqlx.DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

// applicationRow adds the withdrawal-only bank columns to the common shape.
type applicationRow struct {
	model.Application
	BankName      sql.NullString `db:"bank_name"`
	AccountNumber sql.NullString `db:"account_number"`
	AccountHolder sql.NullString `db:"account_holder"`
}

func (row applicationRow) toModel(t model.ApplicationType) model.Application {
	a := row.Application
	a.Type = t
	if t == model.ApplicationWithdrawal {
		a.Bank = &model.BankInfo{
			BankName:      row.BankName.String,
			AccountNumber: row.AccountNumber.String,
			AccountHolder: row.AccountHolder.String,
		}
	}
	return a
}

const applicationColumns = `id, user_id, amount, status, admin_memo, processed_by, processed_at, created_at, updated_at`

func applicationTable(t model.ApplicationType) (table, columns string, err error) {
	switch t {
	case model.ApplicationDeposit:
		return "deposit_applications", applicationColumns, nil
	case model.ApplicationWithdrawal:
		return "withdrawal_applications", applicationColumns + `, bank_name, account_number, account_holder`, nil
	}
	return "", "", fmt.Errorf("unknown application type %q", t)
}

// CreateTx inserts a and populates a.ID.
func (r *ApplicationRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, a *model.Application) error {
	var (
		res sql.Result
		err error
	)
	switch a.Type {
	case model.ApplicationDeposit:
		res, err = tx.ExecContext(ctx,
			`INSERT INTO deposit_applications (user_id, amount, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			a.UserID, a.Amount, a.Status, a.CreatedAt, a.UpdatedAt)
	case model.ApplicationWithdrawal:
		if a.Bank == nil {
			return fmt.Errorf("withdrawal application without bank info")
		}
		res, err = tx.ExecContext(ctx,
			`INSERT INTO withdrawal_applications (user_id, amount, status, bank_name, account_number, account_holder, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.UserID, a.Amount, a.Status, a.Bank.BankName, a.Bank.AccountNumber, a.Bank.AccountHolder, a.CreatedAt, a.UpdatedAt)
	default:
		return fmt.Errorf("unknown application type %q", a.Type)
	}
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// GetByID loads an application without locking.
func (r *ApplicationRepo) GetByID(ctx context.Context, t model.ApplicationType, id uint64) (*model.Application, error) {
	table, cols, err := applicationTable(t)
	if err != nil {
		return nil, err
	}
	var row applicationRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+cols+` FROM `+table+` WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	a := row.toModel(t)
	return &a, nil
}

// GetForUpdateTx loads an application and row-locks it for the rest of tx.
func (r *ApplicationRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, t model.ApplicationType, id uint64) (*model.Application, error) {
	table, cols, err := applicationTable(t)
	if err != nil {
		return nil, err
	}
	var row applicationRow
	if err := tx.GetContext(ctx, &row, `SELECT `+cols+` FROM `+table+` WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	a := row.toModel(t)
	return &a, nil
}

// UpdateStatusTx writes a's status and processing columns provided the row
// is still in status from.
func (r *ApplicationRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, a *model.Application, from model.ApplicationStatus) error {
	table, _, err := applicationTable(a.Type)
	if err != nil {
		return err
	}
	q := `UPDATE ` + table + ` SET status = ?, admin_memo = ?, processed_by = ?, processed_at = ?, updated_at = ?
	      WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, a.Status, a.AdminMemo, a.ProcessedBy, a.ProcessedAt, a.UpdatedAt, a.ID, from)
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

// List returns one page of applications of type t, newest first.  An empty
// status lists every status.
func (r *ApplicationRepo) List(ctx context.Context, t model.ApplicationType, status model.ApplicationStatus, limit, offset int) ([]model.Application, int, error) {
	table, cols, err := applicationTable(t)
	if err != nil {
		return nil, 0, err
	}
	cond := "1 = 1"
	args := []interface{}{}
	if status != "" {
		cond = "status = ?"
		args = append(args, status)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM `+table+` WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}
	rows := []applicationRow{}
	q := `SELECT ` + cols + ` FROM ` + table + ` WHERE ` + cond + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &rows, q, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}
	out := make([]model.Application, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel(t))
	}
	return out, total, nil
}
