// Package service holds the booking and review workflows that sit between
// the HTTP handlers and the repositories.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/parking-rental/internal/availability"
)

var (
	ErrOwnSpace            = errors.New("you cannot book your own space")
	ErrUnknownAction       = errors.New("action must be confirm, cancel or complete")
	ErrNotPending          = errors.New("only pending bookings can be deleted")
	ErrBookingNotCompleted = errors.New("only completed bookings can be reviewed")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrInvalidReviewType   = errors.New("type must be SPACE_REVIEW or USER_REVIEW")
	ErrInvalidPaymentEvent = errors.New("invalid payment event")
)

// UnavailableError rejects a booking whose range is not free.  Result
// carries the reason and, for conflicts, the occupant in the way.
type UnavailableError struct {
	Result availability.Result
}

func (e *UnavailableError) Error() string {
	switch e.Result.Reason {
	case availability.ReasonSpaceInactive:
		return "space is not available for booking"
	case availability.ReasonConflictingBooking:
		return fmt.Sprintf("range conflicts with booking %d", e.Result.Conflict.Ref)
	case availability.ReasonBlocked:
		return fmt.Sprintf("range is blocked by availability window %d", e.Result.Conflict.Ref)
	}
	return "space is unavailable"
}
