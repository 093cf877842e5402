package model

import "time"

// Alert types raised by the core.  The set is open: operators may raise
// custom types through the API, which fall back to a generic template.
const (
    AlertNewBooking        = "new_booking"
    AlertPaymentCompleted  = "payment_completed"
    AlertCancelRequest     = "cancel_request"
    AlertDepositRequest    = "deposit_request"
    AlertWithdrawalRequest = "withdrawal_request"
)

// AdminAlert is a back-office notification.  (AlertType, ReferenceID) is
// unique.
type AdminAlert struct {
    ID          uint64     `db:"id" json:"id"`
    AlertType   string     `db:"alert_type" json:"alert_type"`
    ReferenceID string     `db:"reference_id" json:"reference_id"`
    Title       string     `db:"title" json:"title"`
    Message     string     `db:"message" json:"message"`
    IsRead      bool       `db:"is_read" json:"is_read"`
    ReadBy      *uint64    `db:"read_by" json:"read_by,omitempty"`
    ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
    CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
