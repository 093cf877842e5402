package model

import "time"

// TourStatus is the publication state of a tour.  Only published tours accept
// new bookings.
type TourStatus string

const (
    TourPublished   TourStatus = "published"
    TourUnpublished TourStatus = "unpublished"
    TourDraft       TourStatus = "draft"
)

// Tour is a bookable departure with a fixed seat count.
//
// Fields:
//  MaxParticipants     – seats on offer.
//  CurrentParticipants – seats held by bookings in payment_pending or
//                        payment_completed; 0 ≤ current ≤ max.
//  Price               – price per participant in whole currency units.
//  DepartureDate       – cancellation requests are accepted only before it.
type Tour struct {
    ID                  uint64     `db:"id" json:"id"`
    Title               string     `db:"title" json:"title"`
    MaxParticipants     int        `db:"max_participants" json:"max_participants"`
    CurrentParticipants int        `db:"current_participants" json:"current_participants"`
    Price               int64      `db:"price" json:"price"`
    Status              TourStatus `db:"status" json:"status"`
    DepartureDate       time.Time  `db:"departure_date" json:"departure_date"`
    CreatedAt           time.Time  `db:"created_at" json:"created_at"`
    UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Remaining returns the number of unreserved seats.
func (t Tour) Remaining() int {
    if r := t.MaxParticipants - t.CurrentParticipants; r > 0 {
        return r
    }
    return 0
}

// Bookable reports whether the tour accepts reservations.
func (t Tour) Bookable() bool { return t.Status == TourPublished }
