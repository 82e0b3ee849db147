// Package queue defines the messages exchanged over RabbitMQ and the
// publisher and consumers that move them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/parking-rental/internal/model"
)

// Routing keys on the topic exchange.
const (
	KeyBookingCreated       = "booking.created"
	KeyBookingStatusChanged = "booking.status_changed"
	KeyPaymentSucceeded     = "payment.succeeded"
	KeyPaymentFailed        = "payment.failed"
)

// BookingEvent is published whenever a booking is created or changes
// status.  Amounts are decimal strings with two fractional digits.
type BookingEvent struct {
	EventID        string    `json:"eventId"`
	Type           string    `json:"type"`
	BookingID      uint64    `json:"bookingId"`
	SpaceID        uint64    `json:"spaceId"`
	SpaceTitle     string    `json:"spaceTitle"`
	UserID         uint64    `json:"userId"`
	OwnerID        uint64    `json:"ownerId"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	PaymentStatus  string    `json:"paymentStatus"`
	StartDateTime  time.Time `json:"startDateTime"`
	EndDateTime    time.Time `json:"endDateTime"`
	TotalAmount    string    `json:"totalAmount"`
	PlatformFee    string    `json:"platformFee"`
	OwnerAmount    string    `json:"ownerAmount"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// NewBookingEvent snapshots b under a fresh event id.  prev is empty for
// booking.created.
func NewBookingEvent(key string, b *model.Booking, prev model.BookingStatus, at time.Time) BookingEvent {
	return BookingEvent{
		EventID:        uuid.NewString(),
		Type:           key,
		BookingID:      b.ID,
		SpaceID:        b.SpaceID,
		SpaceTitle:     b.SpaceTitle,
		UserID:         b.UserID,
		OwnerID:        b.SpaceOwnerID,
		Status:         string(b.Status),
		PreviousStatus: string(prev),
		PaymentStatus:  string(b.PaymentStatus),
		StartDateTime:  b.StartDateTime.UTC(),
		EndDateTime:    b.EndDateTime.UTC(),
		TotalAmount:    b.TotalAmount.StringFixed(2),
		PlatformFee:    b.PlatformFee.StringFixed(2),
		OwnerAmount:    b.OwnerAmount.StringFixed(2),
		OccurredAt:     at.UTC(),
	}
}

// PaymentEvent is sent by the payment processor integration once a
// checkout settles.  It never carries amounts; those come from the booking.
type PaymentEvent struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"` // payment.succeeded or payment.failed
	BookingID  uint64    `json:"bookingId"`
	PaymentRef string    `json:"paymentRef"`
	OccurredAt time.Time `json:"occurredAt"`
}
