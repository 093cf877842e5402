package model

import (
    "fmt"
    "time"
)

// BookingStatus is the closed set of booking lifecycle states.  The status
// column is written only through the transition table below.
type BookingStatus string

const (
    BookingPaymentPending   BookingStatus = "payment_pending"
    BookingPaymentCompleted BookingStatus = "payment_completed"
    BookingPaymentExpired   BookingStatus = "payment_expired"
    BookingCancelRequested  BookingStatus = "cancel_requested"
    BookingCancelled        BookingStatus = "cancelled"
    BookingRefundCompleted  BookingStatus = "refund_completed"
)

// bookingTransitions lists every permitted edge.  cancel_requested →
// payment_completed is the administrative reversal of a cancellation request.
var bookingTransitions = map[BookingStatus][]BookingStatus{
    BookingPaymentPending:   {BookingPaymentCompleted, BookingPaymentExpired, BookingCancelRequested},
    BookingPaymentCompleted: {BookingCancelRequested},
    BookingCancelRequested:  {BookingCancelled, BookingRefundCompleted, BookingPaymentCompleted},
    BookingPaymentExpired:   nil,
    BookingCancelled:        nil,
    BookingRefundCompleted:  nil,
}

// ParseBookingStatus validates a raw status string.
func ParseBookingStatus(s string) (BookingStatus, error) {
    st := BookingStatus(s)
    if _, ok := bookingTransitions[st]; !ok {
        return "", fmt.Errorf("unknown booking status %q", s)
    }
    return st, nil
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
    for _, n := range bookingTransitions[s] {
        if n == next {
            return true
        }
    }
    return false
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
    edges, ok := bookingTransitions[s]
    return ok && len(edges) == 0
}

// HoldsSeats reports whether a booking in this state counts against the
// tour's reserved-seat counter.
func (s BookingStatus) HoldsSeats() bool {
    switch s {
    case BookingPaymentPending, BookingPaymentCompleted:
        return true
    default:
        return false
    }
}

// Booking is a customer's reservation on a tour.  TotalAmount is computed once
// at creation (price × participants) and never changes.  PaymentDueDate is set
// only while the booking is payment_pending.
type Booking struct {
    ID                uint64        `db:"id" json:"id"`
    BookingNumber     string        `db:"booking_number" json:"booking_number"`
    TourID            uint64        `db:"tour_id" json:"tour_id"`
    UserID            *uint64       `db:"user_id" json:"user_id,omitempty"`
    CustomerName      string        `db:"customer_name" json:"customer_name"`
    CustomerPhone     string        `db:"customer_phone" json:"customer_phone"`
    CustomerEmail     string        `db:"customer_email" json:"customer_email"`
    PasswordHash      *string       `db:"password_hash" json:"-"`
    Participants      int           `db:"participants" json:"participants"`
    TotalAmount       int64         `db:"total_amount" json:"total_amount"`
    Status            BookingStatus `db:"status" json:"status"`
    PaymentDueDate    *time.Time    `db:"payment_due_date" json:"payment_due_date,omitempty"`
    CancelReason      *string       `db:"cancel_reason" json:"cancel_reason,omitempty"`
    CancelRequestedAt *time.Time    `db:"cancel_requested_at" json:"cancel_requested_at,omitempty"`
    CreatedAt         time.Time     `db:"created_at" json:"created_at"`
    UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentOverdue reports whether the payment window has passed at now.
func (b Booking) PaymentOverdue(now time.Time) bool {
    return b.Status == BookingPaymentPending && b.PaymentDueDate != nil && now.After(*b.PaymentDueDate)
}

// OverdueRef positions a booking in the overdue scan, which is ordered by
// (PaymentDueDate, ID).  The zero value starts at the beginning.
type OverdueRef struct {
    ID             uint64    `db:"id"`
    PaymentDueDate time.Time `db:"payment_due_date"`
}

// CustomerInfo is the contact block supplied when creating a booking.
type CustomerInfo struct {
    Name     string  `json:"name" validate:"required,max=100"`
    Phone    string  `json:"phone" validate:"required,max=30"`
    Email    string  `json:"email" validate:"required,email,max=255"`
    Password string  `json:"password" validate:"omitempty,min=4,max=72"`
    UserID   *uint64 `json:"-"`
}
