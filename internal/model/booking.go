package model

import (
    "errors"
    "time"

    "github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    BookingPending   BookingStatus = "PENDING"
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingCancelled BookingStatus = "CANCELLED"
    BookingCompleted BookingStatus = "COMPLETED"
)

// ErrInvalidTransition is returned when a status change is not an edge of
// the booking lifecycle.
var ErrInvalidTransition = errors.New("invalid booking status transition")

// transitions lists the allowed successors of every non-terminal state.
var transitions = map[BookingStatus][]BookingStatus{
    BookingPending:   {BookingConfirmed, BookingCancelled},
    BookingConfirmed: {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) Valid() bool {
    switch s {
    case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
        return true
    }
    return false
}

// Occupies reports whether a booking in this state holds its interval.
// Only PENDING and CONFIRMED bookings block other renters.
func (s BookingStatus) Occupies() bool {
    return s == BookingPending || s == BookingConfirmed
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
    return s == BookingCancelled || s == BookingCompleted
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
    for _, t := range transitions[s] {
        if t == next {
            return true
        }
    }
    return false
}

// Transition returns ErrInvalidTransition when from -> to is not allowed.
func Transition(from, to BookingStatus) error {
    if !from.CanTransitionTo(to) {
        return ErrInvalidTransition
    }
    return nil
}

// InitialStatus is the status of a freshly created booking.
func InitialStatus(autoApprove bool) BookingStatus {
    if autoApprove {
        return BookingConfirmed
    }
    return BookingPending
}

// PaymentStatus tracks settlement with the external payment processor.
type PaymentStatus string

const (
    PaymentPending  PaymentStatus = "PENDING"
    PaymentPaid     PaymentStatus = "PAID"
    PaymentFailed   PaymentStatus = "FAILED"
    PaymentRefunded PaymentStatus = "REFUNDED"
)

// Booking mirrors the `bookings` table.  SpaceOwnerID and SpaceTitle are
// filled from a join with spaces when the query needs them.
type Booking struct {
    ID              uint64          // bookings.id
    SpaceID         uint64          // bookings.space_id
    UserID          uint64          // bookings.user_id (renter)
    StartDateTime   time.Time       // bookings.start_at
    EndDateTime     time.Time       // bookings.end_at (exclusive)
    Status          BookingStatus   // bookings.status
    TotalAmount     decimal.Decimal // bookings.total_amount
    PlatformFee     decimal.Decimal // bookings.platform_fee
    OwnerAmount     decimal.Decimal // bookings.owner_amount
    PaymentStatus   PaymentStatus   // bookings.payment_status
    PaymentRef      string          // bookings.payment_ref (empty when NULL)
    PaidAt          *time.Time      // bookings.paid_at (nullable)
    SpecialRequests string          // bookings.special_requests
    CreatedAt       time.Time       // bookings.created_at
    UpdatedAt       time.Time       // bookings.updated_at

    SpaceOwnerID uint64 // spaces.owner_id
    SpaceTitle   string // spaces.title
}
