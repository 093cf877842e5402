package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CapacityAccountant owns the tours.current_participants counter.  Every
// change goes through a single bounded UPDATE so the counter never leaves
// [0, max_participants] even under concurrent bookings.
type CapacityAccountant struct {
	tours TourStore
	now   Clock
}

// NewCapacityAccountant returns an accountant over tours.
func NewCapacityAccountant(tours TourStore) *CapacityAccountant {
	return &CapacityAccountant{tours: tours, now: utcNow}
}

// Reserve adds n seats to the tour's counter inside tx.  It returns
// ErrCapacityExceeded (and leaves the counter untouched) when fewer than n
// seats remain.  Rejections are counted by the caller after the transaction
// ends.
func (c *CapacityAccountant) Reserve(ctx context.Context, tx *sqlx.Tx, tourID uint64, n int) error {
	if n <= 0 {
		return validationf("participants must be positive, got %d", n)
	}
	err := c.tours.ReserveSeatsTx(ctx, tx, tourID, n)
	if errors.Is(err, ErrCapacityExceeded) {
		return fmt.Errorf("%w: %d seats requested on tour %d", ErrCapacityExceeded, n, tourID)
	}
	return err
}

// Release returns n seats.  The counter is floored at zero.
func (c *CapacityAccountant) Release(ctx context.Context, tx *sqlx.Tx, tourID uint64, n int) error {
	if n <= 0 {
		return validationf("participants must be positive, got %d", n)
	}
	return c.tours.ReleaseSeatsTx(ctx, tx, tourID, n)
}

// Availability is the public seat summary of a tour.
type Availability struct {
	TourID    uint64 `json:"tour_id"`
	Max       int    `json:"max_participants"`
	Reserved  int    `json:"current_participants"`
	Remaining int    `json:"remaining"`
	Bookable  bool   `json:"bookable"`
}

// Availability reads the committed counter.  The result may be stale by the
// time a booking is attempted; Reserve is the authoritative check.
func (c *CapacityAccountant) Availability(ctx context.Context, tourID uint64) (Availability, error) {
	t, err := c.tours.GetByID(ctx, tourID)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		TourID:    t.ID,
		Max:       t.MaxParticipants,
		Reserved:  t.CurrentParticipants,
		Remaining: t.Remaining(),
		Bookable:  t.Bookable() && t.DepartureDate.After(c.now()),
	}, nil
}
