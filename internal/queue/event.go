// Package queue defines the notification payloads exchanged over RabbitMQ
// together with the publisher and the log-writing consumer.
package queue

// Event kinds carried in Event.Kind.  The routing key is always the
// configured notification queue; consumers switch on Kind.
const (
	KindBookingCreated        = "booking.created"
	KindPaymentCompleted      = "booking.payment_completed"
	KindCancelRequested       = "booking.cancel_requested"
	KindCancellationFinalized = "booking.cancellation_finalized"
	KindBookingExpired        = "booking.expired"
	KindApplicationSubmitted  = "application.submitted"
	KindApplicationDecided    = "application.decided"
)

// Event is a best-effort customer notification.  It carries enough data for
// the consumer to log or forward it (email, SMS) without reading the database.
// Fields that do not apply to Kind are left empty.
type Event struct {
	Kind          string `json:"kind"`
	BookingID     uint64 `json:"booking_id,omitempty"`
	BookingNumber string `json:"booking_number,omitempty"`
	TourID        uint64 `json:"tour_id,omitempty"`
	Status        string `json:"status,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	Participants  int    `json:"participants,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	UserID        uint64 `json:"user_id,omitempty"`
	ApplicationID uint64 `json:"application_id,omitempty"`
	// ApplicationType is "deposit" or "withdrawal".
	ApplicationType string `json:"application_type,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}
