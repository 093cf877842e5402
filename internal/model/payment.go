package model

import "time"

// PaymentCompleted is the only status a payment row ever carries; the row is
// written once when its booking enters payment_completed.
const PaymentCompleted = "completed"

// Payment records the settlement of a booking (1:1).
type Payment struct {
    ID             uint64    `db:"id" json:"id"`
    BookingID      uint64    `db:"booking_id" json:"booking_id"`
    Amount         int64     `db:"amount" json:"amount"`
    Method         string    `db:"method" json:"method"`
    Status         string    `db:"status" json:"status"`
    PaidAt         time.Time `db:"paid_at" json:"paid_at"`
    BankName       string    `db:"bank_name" json:"bank_name"`
    DepositorName  string    `db:"depositor_name" json:"depositor_name"`
    TransactionRef string    `db:"transaction_ref" json:"transaction_ref"`
    CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// PaymentInfo is what an operator supplies when confirming a payment.  Amount
// is optional; when given it must equal the booking's total.
type PaymentInfo struct {
    Method         string     `json:"method" validate:"required,oneof=bank_transfer card mileage cash"`
    Amount         int64      `json:"amount" validate:"gte=0"`
    BankName       string     `json:"bank_name" validate:"max=100"`
    DepositorName  string     `json:"depositor_name" validate:"max=100"`
    TransactionRef string     `json:"transaction_ref" validate:"max=100"`
    PaidAt         *time.Time `json:"paid_at"`
}
