package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/model"
)

// AlertRepo persists admin alerts.  The (alert_type, reference_id) unique key
// is what makes raising idempotent; no method reads before writing.
type AlertRepo struct {
	db *sqlx.DB
}

// NewAlertRepo returns an AlertRepo bound to db.
func NewAlertRepo(db *sqlx.DB) *AlertRepo { return &AlertRepo{db: db} }

const alertColumns = `id, alert_type, reference_id, title, message, is_read, read_by, read_at, created_at`

// Insert adds an unread alert.  It reports false without error when an alert
// with the same key already exists.
func (r *AlertRepo) Insert(ctx context.Context, a *model.AdminAlert) (bool, error) {
	return insertAlert(ctx, r.db, a)
}

// InsertTx is Insert inside a caller-owned transaction.  A duplicate key in
// InnoDB fails only the statement, so tx stays usable.
func (r *AlertRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, a *model.AdminAlert) (bool, error) {
	return insertAlert(ctx, tx, a)
}

func insertAlert(ctx context.Context, ex sqlx.ExecerContext, a *model.AdminAlert) (bool, error) {
	const q = `INSERT INTO admin_alerts (alert_type, reference_id, title, message, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := ex.ExecContext(ctx, q, a.AlertType, a.ReferenceID, a.Title, a.Message, a.CreatedAt)
	if err != nil {
		if IsDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = uint64(id)
	}
	return true, nil
}

// UpsertRead marks the alert read by adminID, inserting it already read
// (with the supplied title and message) when it does not exist.  The first
// reader is kept when the alert was already read.  It reports whether a new
// row was created.
func (r *AlertRepo) UpsertRead(ctx context.Context, a *model.AdminAlert, adminID uint64, at time.Time) (bool, error) {
	// MySQL applies the assignments left to right, so is_read must be last.
	const q = `INSERT INTO admin_alerts (alert_type, reference_id, title, message, is_read, read_by, read_at, created_at)
	           VALUES (?, ?, ?, ?, 1, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	               read_by = IF(is_read = 1, read_by, VALUES(read_by)),
	               read_at = IF(is_read = 1, read_at, VALUES(read_at)),
	               is_read = 1`
	res, err := r.db.ExecContext(ctx, q, a.AlertType, a.ReferenceID, a.Title, a.Message, adminID, at, at)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	// 1: inserted, 2: existing row updated, 0: existing row already read.
	return affected == 1, nil
}

// GetByKey loads the alert for (alertType, referenceID).
func (r *AlertRepo) GetByKey(ctx context.Context, alertType, referenceID string) (*model.AdminAlert, error) {
	var a model.AdminAlert
	q := `SELECT ` + alertColumns + ` FROM admin_alerts WHERE alert_type = ? AND reference_id = ?`
	if err := r.db.GetContext(ctx, &a, q, alertType, referenceID); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// List returns one page of alerts, newest first.
func (r *AlertRepo) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]model.AdminAlert, int, error) {
	cond := "1 = 1"
	if unreadOnly {
		cond = "is_read = 0"
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM admin_alerts WHERE `+cond); err != nil {
		return nil, 0, err
	}
	rows := []model.AdminAlert{}
	q := `SELECT ` + alertColumns + ` FROM admin_alerts WHERE ` + cond + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &rows, q, limit, offset); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
