package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/travel-booking/internal/auth"
	"github.com/iliyamo/travel-booking/internal/metrics"
	"github.com/iliyamo/travel-booking/internal/model"
	"github.com/iliyamo/travel-booking/internal/queue"
	"github.com/iliyamo/travel-booking/internal/repository"
)

// BookingService owns the booking lifecycle.  Status is written only by
// transition, which also moves seats in or out of the tour's counter when a
// booking enters or leaves a seat-holding state.  Every operation runs in
// one transaction that locks the booking row first and the tour row second.
type BookingService struct {
	db            *sqlx.DB
	tours         TourStore
	bookings      BookingStore
	payments      PaymentStore
	capacity      *CapacityAccountant
	alerts        *AlertService
	notify        *Dispatcher
	paymentWindow time.Duration
	bcryptCost    int
	now           Clock
}

// BookingSettings tunes the reservation flow.
type BookingSettings struct {
	PaymentWindow time.Duration
	BcryptCost    int
}

// NewBookingService wires the booking lifecycle to its stores.
func NewBookingService(db *sqlx.DB, tours TourStore, bookings BookingStore, payments PaymentStore, capacity *CapacityAccountant, alerts *AlertService, notify *Dispatcher, cfg BookingSettings) *BookingService {
	if cfg.PaymentWindow <= 0 {
		cfg.PaymentWindow = 24 * time.Hour
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = 10
	}
	return &BookingService{
		db:            db,
		tours:         tours,
		bookings:      bookings,
		payments:      payments,
		capacity:      capacity,
		alerts:        alerts,
		notify:        notify,
		paymentWindow: cfg.PaymentWindow,
		bcryptCost:    cfg.BcryptCost,
		now:           utcNow,
	}
}

// transition moves b to status to inside tx.  Seats are reserved when the
// booking re-enters a seat-holding state and released when it leaves one.
func (s *BookingService) transition(ctx context.Context, tx *sqlx.Tx, b *model.Booking, to model.BookingStatus) error {
	from := b.Status
	if !from.CanTransitionTo(to) {
		return invalidStatef("booking %s is %s, cannot move to %s", b.BookingNumber, from, to)
	}
	switch {
	case from.HoldsSeats() && !to.HoldsSeats():
		if err := s.capacity.Release(ctx, tx, b.TourID, b.Participants); err != nil {
			return err
		}
	case !from.HoldsSeats() && to.HoldsSeats():
		if err := s.capacity.Reserve(ctx, tx, b.TourID, b.Participants); err != nil {
			return err
		}
	}
	b.Status = to
	b.UpdatedAt = s.now()
	if to != model.BookingPaymentPending {
		b.PaymentDueDate = nil
	}
	if err := s.bookings.UpdateStatusTx(ctx, tx, b, from); err != nil {
		b.Status = from
		return err
	}
	return nil
}

// recordCapacityRejection counts err once its transaction has ended.
func recordCapacityRejection(err error) {
	if errors.Is(err, ErrCapacityExceeded) {
		metrics.RecordCapacityRejection()
	}
}

// CreateRequest is a new reservation.
type CreateRequest struct {
	TourID       uint64
	Participants int
	Customer     model.CustomerInfo
}

// Create reserves seats and stores the booking in payment_pending with a
// payment deadline of now + payment window.
func (s *BookingService) Create(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	if req.Participants <= 0 {
		return nil, validationf("participants must be positive, got %d", req.Participants)
	}
	c := req.Customer
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Phone) == "" || strings.TrimSpace(c.Email) == "" {
		return nil, validationf("customer name, phone and email are required")
	}

	var hash *string
	if c.Password != "" {
		h, err := auth.HashPassword(c.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		hash = &h
	}

	var (
		b       *model.Booking
		alerted bool
	)
	err := repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		tour, err := s.tours.GetForUpdateTx(ctx, tx, req.TourID)
		if err != nil {
			return err
		}
		now := s.now()
		if !tour.Bookable() {
			return fmt.Errorf("%w: tour %d is %s", ErrTourNotBookable, tour.ID, tour.Status)
		}
		if !tour.DepartureDate.After(now) {
			return fmt.Errorf("%w: tour %d departed on %s", ErrTourNotBookable, tour.ID, tour.DepartureDate.Format("2006-01-02"))
		}
		if tour.Remaining() < req.Participants {
			return fmt.Errorf("%w: %d seats left on tour %d, %d requested", ErrCapacityExceeded, tour.Remaining(), tour.ID, req.Participants)
		}
		if err := s.capacity.Reserve(ctx, tx, tour.ID, req.Participants); err != nil {
			return err
		}

		due := now.Add(s.paymentWindow)
		b = &model.Booking{
			BookingNumber:  newBookingNumber(now),
			TourID:         tour.ID,
			UserID:         c.UserID,
			CustomerName:   strings.TrimSpace(c.Name),
			CustomerPhone:  strings.TrimSpace(c.Phone),
			CustomerEmail:  strings.TrimSpace(c.Email),
			PasswordHash:   hash,
			Participants:   req.Participants,
			TotalAmount:    tour.Price * int64(req.Participants),
			Status:         model.BookingPaymentPending,
			PaymentDueDate: &due,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: booking number %s already taken", ErrConflict, b.BookingNumber)
			}
			return err
		}
		alerted, err = s.alerts.RaiseTx(ctx, tx, AlertInput{
			Type:        model.AlertNewBooking,
			ReferenceID: strconv.FormatUint(b.ID, 10),
			Detail:      fmt.Sprintf("%s booked %d seat(s) on tour %d, total %d.", b.CustomerName, b.Participants, b.TourID, b.TotalAmount),
		})
		return err
	})
	if err != nil {
		recordCapacityRejection(err)
		return nil, err
	}

	metrics.RecordBookingTransition("", string(b.Status))
	metrics.RecordAlert(model.AlertNewBooking, alerted)
	s.notify.Dispatch(bookingEvent(queue.KindBookingCreated, b))
	return b, nil
}

// ConfirmPayment records the payment and moves the booking to
// payment_completed.  A booking whose deadline has passed but which the
// sweeper has not expired yet is still accepted.
func (s *BookingService) ConfirmPayment(ctx context.Context, actor Actor, bookingID uint64, info model.PaymentInfo) (*model.Booking, *model.Payment, error) {
	if err := requireBackOffice(actor); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(info.Method) == "" {
		return nil, nil, validationf("payment method is required")
	}
	if info.Amount < 0 {
		return nil, nil, validationf("payment amount must not be negative")
	}

	var (
		b       *model.Booking
		p       *model.Payment
		alerted bool
	)
	err := repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		b, err = s.bookings.GetForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingPaymentPending {
			return invalidStatef("booking %s is %s, payment can only be confirmed while %s", b.BookingNumber, b.Status, model.BookingPaymentPending)
		}
		if info.Amount != 0 && info.Amount != b.TotalAmount {
			return validationf("payment amount %d does not match booking total %d", info.Amount, b.TotalAmount)
		}

		now := s.now()
		paidAt := now
		if info.PaidAt != nil {
			paidAt = info.PaidAt.UTC()
		}
		p = &model.Payment{
			BookingID:      b.ID,
			Amount:         b.TotalAmount,
			Method:         info.Method,
			Status:         model.PaymentCompleted,
			PaidAt:         paidAt,
			BankName:       info.BankName,
			DepositorName:  info.DepositorName,
			TransactionRef: info.TransactionRef,
			CreatedAt:      now,
		}
		if err := s.payments.CreateTx(ctx, tx, p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return invalidStatef("booking %s already has a payment", b.BookingNumber)
			}
			return err
		}
		if err := s.transition(ctx, tx, b, model.BookingPaymentCompleted); err != nil {
			return err
		}
		alerted, err = s.alerts.RaiseTx(ctx, tx, AlertInput{
			Type:        model.AlertPaymentCompleted,
			ReferenceID: strconv.FormatUint(b.ID, 10),
			Detail:      fmt.Sprintf("Booking %s paid %d by %s.", b.BookingNumber, p.Amount, p.Method),
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.RecordBookingTransition(string(model.BookingPaymentPending), string(b.Status))
	metrics.RecordAlert(model.AlertPaymentCompleted, alerted)
	s.notify.Dispatch(bookingEvent(queue.KindPaymentCompleted, b))
	return b, p, nil
}

// OwnerProof identifies the party asking to cancel: either the logged-in
// owner or the guest password chosen at booking time.  Back-office actors
// pass any proof.
type OwnerProof struct {
	Actor    Actor
	Password string
}

func (s *BookingService) owns(b *model.Booking, proof OwnerProof) bool {
	if proof.Actor.backOffice() {
		return true
	}
	if proof.Actor.UserID != 0 && b.UserID != nil && *b.UserID == proof.Actor.UserID {
		return true
	}
	return proof.Password != "" && b.PasswordHash != nil && auth.VerifyPassword(*b.PasswordHash, proof.Password)
}

// RequestCancellation moves a pending or paid booking to cancel_requested
// and frees its seats immediately.  The tour must not have departed.
func (s *BookingService) RequestCancellation(ctx context.Context, bookingID uint64, proof OwnerProof, reason string) (*model.Booking, error) {
	var (
		b       *model.Booking
		from    model.BookingStatus
		alerted bool
	)
	err := repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		b, err = s.bookings.GetForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !s.owns(b, proof) {
			return ErrUnauthorized
		}
		from = b.Status
		if from.Terminal() || from == model.BookingCancelRequested {
			return fmt.Errorf("%w: booking %s is %s", ErrAlreadyTerminal, b.BookingNumber, from)
		}
		tour, err := s.tours.GetForUpdateTx(ctx, tx, b.TourID)
		if err != nil {
			return err
		}
		now := s.now()
		if !tour.DepartureDate.After(now) {
			return fmt.Errorf("%w: tour %d departed on %s", ErrDepartureTooSoon, tour.ID, tour.DepartureDate.Format("2006-01-02"))
		}

		r := strings.TrimSpace(reason)
		b.CancelReason = &r
		b.CancelRequestedAt = &now
		if err := s.transition(ctx, tx, b, model.BookingCancelRequested); err != nil {
			return err
		}
		alerted, err = s.alerts.RaiseTx(ctx, tx, AlertInput{
			Type:        model.AlertCancelRequest,
			ReferenceID: strconv.FormatUint(b.ID, 10),
			Detail:      fmt.Sprintf("Booking %s (%s). Reason: %s", b.BookingNumber, from, r),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordBookingTransition(string(from), string(b.Status))
	metrics.RecordAlert(model.AlertCancelRequest, alerted)
	s.notify.Dispatch(bookingEvent(queue.KindCancelRequested, b))
	return b, nil
}

// FinalizeCancellation settles a cancel_requested booking.  target is
// cancelled, refund_completed, or payment_completed to reverse the request;
// a reversal requires a recorded payment and re-reserves the seats.
func (s *BookingService) FinalizeCancellation(ctx context.Context, actor Actor, bookingID uint64, target model.BookingStatus) (*model.Booking, error) {
	if err := requireBackOffice(actor); err != nil {
		return nil, err
	}
	switch target {
	case model.BookingCancelled, model.BookingRefundCompleted, model.BookingPaymentCompleted:
	default:
		return nil, validationf("target status must be %s, %s or %s", model.BookingCancelled, model.BookingRefundCompleted, model.BookingPaymentCompleted)
	}

	var b *model.Booking
	err := repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		b, err = s.bookings.GetForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingCancelRequested {
			return invalidStatef("booking %s is %s, only %s can be finalized", b.BookingNumber, b.Status, model.BookingCancelRequested)
		}
		if target == model.BookingPaymentCompleted {
			if _, err := s.payments.GetByBookingIDTx(ctx, tx, b.ID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return invalidStatef("booking %s has no payment to restore", b.BookingNumber)
				}
				return err
			}
			b.CancelReason = nil
			b.CancelRequestedAt = nil
		}
		return s.transition(ctx, tx, b, target)
	})
	if err != nil {
		recordCapacityRejection(err)
		return nil, err
	}

	metrics.RecordBookingTransition(string(model.BookingCancelRequested), string(b.Status))
	s.notify.Dispatch(bookingEvent(queue.KindCancellationFinalized, b))
	return b, nil
}

// Expire moves an overdue payment_pending booking to payment_expired and
// releases its seats.  It reports false without error when the booking is
// already expired.  The status and deadline are re-checked under the row
// lock, so a booking confirmed concurrently is left alone.
func (s *BookingService) Expire(ctx context.Context, bookingID uint64) (bool, error) {
	var b *model.Booking
	expired := false
	err := repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		expired = false
		var err error
		b, err = s.bookings.GetForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == model.BookingPaymentExpired {
			return nil
		}
		if b.Status != model.BookingPaymentPending {
			return invalidStatef("booking %s is %s", b.BookingNumber, b.Status)
		}
		if !b.PaymentOverdue(s.now()) {
			return invalidStatef("booking %s payment window is still open", b.BookingNumber)
		}
		if err := s.transition(ctx, tx, b, model.BookingPaymentExpired); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if expired {
		metrics.RecordBookingTransition(string(model.BookingPaymentPending), string(b.Status))
		s.notify.Dispatch(bookingEvent(queue.KindBookingExpired, b))
	}
	return expired, nil
}

// BookingView is a booking together with its payment, if any.
type BookingView struct {
	*model.Booking
	Payment *model.Payment `json:"payment,omitempty"`
}

// Get returns a booking by id for back-office use.
func (s *BookingService) Get(ctx context.Context, actor Actor, id uint64) (*BookingView, error) {
	if err := requireBackOffice(actor); err != nil {
		return nil, err
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, b)
}

// Lookup finds a booking by its number for the customer who owns it.  A
// wrong proof is reported as not found so numbers cannot be guessed.
func (s *BookingService) Lookup(ctx context.Context, number string, proof OwnerProof) (*BookingView, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, validationf("booking number is required")
	}
	b, err := s.bookings.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !s.owns(b, proof) {
		return nil, ErrNotFound
	}
	return s.view(ctx, b)
}

func (s *BookingService) view(ctx context.Context, b *model.Booking) (*BookingView, error) {
	v := &BookingView{Booking: b}
	p, err := s.payments.GetByBookingID(ctx, b.ID)
	switch {
	case err == nil:
		v.Payment = p
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return v, nil
}

// newBookingNumber returns a human-readable unique number such as
// TB20261018-3F9A1C2E.
func newBookingNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "TB" + now.Format("20060102") + "-" + id[:8]
}

func bookingEvent(kind string, b *model.Booking) queue.Event {
	ev := queue.Event{
		Kind:          kind,
		BookingID:     b.ID,
		BookingNumber: b.BookingNumber,
		TourID:        b.TourID,
		Status:        string(b.Status),
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		CustomerPhone: b.CustomerPhone,
		Participants:  b.Participants,
		Amount:        b.TotalAmount,
	}
	if b.UserID != nil {
		ev.UserID = *b.UserID
	}
	return ev
}
