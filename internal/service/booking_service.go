package service

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/parking-rental/internal/availability"
	"github.com/iliyamo/parking-rental/internal/clock"
	"github.com/iliyamo/parking-rental/internal/model"
	"github.com/iliyamo/parking-rental/internal/queue"
	"github.com/iliyamo/parking-rental/internal/repository"
)

// BookingStore is the persistence the booking workflow needs.
// *repository.BookingRepo implements it.
type BookingStore interface {
	CreateChecked(ctx context.Context, in repository.NewBooking, check repository.BookingCheck) (*model.Booking, error)
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	List(ctx context.Context, f repository.BookingFilter, p repository.Page) ([]model.Booking, int, error)
	UpdateStatus(ctx context.Context, id uint64, from, to model.BookingStatus) error
	DeletePending(ctx context.Context, id, userID uint64) error
	ActiveInRange(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.Booking, error)
	ApplyPaymentEvent(ctx context.Context, eventID, eventType string, bookingID uint64, apply repository.SettlementApply) (*model.Booking, bool, error)
}

type SpaceReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Space, error)
}

type WindowReader interface {
	BlockingInRange(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.BlockedWindow, error)
	ListBySpace(ctx context.Context, spaceID uint64, from, to *time.Time) ([]model.BlockedWindow, error)
}

// EventPublisher is satisfied by *queue.Publisher.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Booking actions accepted by Act.
const (
	ActionConfirm  = "confirm"
	ActionCancel   = "cancel"
	ActionComplete = "complete"
)

// defaultListingSpan bounds the bookings returned by AvailabilityListing
// when the caller gives no date range.
const defaultListingSpan = 30 * 24 * time.Hour

type BookingService struct {
	eval     *availability.Evaluator
	bookings BookingStore
	spaces   SpaceReader
	windows  WindowReader
	events   EventPublisher // nil disables publishing
	clock    clock.Clock
	tracer   trace.Tracer
}

func NewBookingService(eval *availability.Evaluator, bookings BookingStore, spaces SpaceReader, windows WindowReader,
	events EventPublisher, clk clock.Clock, tracer trace.Tracer) *BookingService {
	return &BookingService{
		eval:     eval,
		bookings: bookings,
		spaces:   spaces,
		windows:  windows,
		events:   events,
		clock:    clk,
		tracer:   tracer,
	}
}

// Preview evaluates iv against the current occupants without taking any
// lock.  The answer is a hint; Create repeats the check under the lock.
func (s *BookingService) Preview(ctx context.Context, spaceID uint64, iv availability.Interval) (availability.Result, error) {
	ctx, span := s.tracer.Start(ctx, "booking.preview", trace.WithAttributes(attribute.Int64("space.id", int64(spaceID))))
	defer span.End()

	if err := iv.Validate(); err != nil {
		return availability.Result{}, err
	}
	space, err := s.spaces.GetByID(ctx, spaceID)
	if err != nil {
		return availability.Result{}, err
	}
	bookings, err := s.bookings.ActiveInRange(ctx, spaceID, iv.Start, iv.End)
	if err != nil {
		return availability.Result{}, err
	}
	windows, err := s.windows.BlockingInRange(ctx, spaceID, iv.Start, iv.End)
	if err != nil {
		return availability.Result{}, err
	}
	res, err := s.eval.Evaluate(availability.SpaceOf(*space), iv, availability.Occupants(bookings, windows))
	if err != nil {
		return availability.Result{}, err
	}
	span.SetAttributes(attribute.Bool("available", res.Available))
	return res, nil
}

// Create books a space for renterID.  The evaluator runs inside the
// repository transaction after the space row is locked, so the verdict and
// the insert cannot be separated by a competing booking.
func (s *BookingService) Create(ctx context.Context, renterID uint64, in repository.NewBooking) (*model.Booking, *availability.Pricing, error) {
	ctx, span := s.tracer.Start(ctx, "booking.create", trace.WithAttributes(
		attribute.Int64("space.id", int64(in.SpaceID)),
		attribute.Int64("user.id", int64(renterID)),
	))
	defer span.End()

	iv, err := availability.NewInterval(in.Start, in.End)
	if err != nil {
		return nil, nil, err
	}
	in.UserID = renterID

	var pricing availability.Pricing
	b, err := s.bookings.CreateChecked(ctx, in, func(space *model.Space, bookings []model.Booking, windows []model.BlockedWindow) (repository.BookingDraft, error) {
		if space.OwnerID == renterID {
			return repository.BookingDraft{}, ErrOwnSpace
		}
		res, err := s.eval.Evaluate(availability.SpaceOf(*space), iv, availability.Occupants(bookings, windows))
		if err != nil {
			return repository.BookingDraft{}, err
		}
		if !res.Available {
			return repository.BookingDraft{}, &UnavailableError{Result: res}
		}
		pricing = *res.Pricing
		return repository.BookingDraft{
			Status:      model.InitialStatus(space.AutoApprove),
			TotalAmount: pricing.TotalAmount,
			PlatformFee: pricing.PlatformFee,
			OwnerAmount: pricing.OwnerAmount,
		}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	span.SetAttributes(attribute.Int64("booking.id", int64(b.ID)), attribute.String("booking.status", string(b.Status)))
	s.publish(ctx, queue.KeyBookingCreated, b, "")
	return b, &pricing, nil
}

// Get returns a booking visible to its renter and to the space owner.
func (s *BookingService) Get(ctx context.Context, actorID, id uint64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != actorID && b.SpaceOwnerID != actorID {
		return nil, repository.ErrForbidden
	}
	return b, nil
}

// List returns the bookings made by actorID, or with asHost the bookings
// received on actorID's spaces.
func (s *BookingService) List(ctx context.Context, actorID uint64, asHost bool, status model.BookingStatus, p repository.Page) ([]model.Booking, int, error) {
	f := repository.BookingFilter{Status: status}
	if asHost {
		f.OwnerID = &actorID
	} else {
		f.UserID = &actorID
	}
	return s.bookings.List(ctx, f, p)
}

// Act applies a lifecycle action.  Only the host confirms and completes;
// either party may cancel a booking that is not terminal yet.
func (s *BookingService) Act(ctx context.Context, actorID, id uint64, action string) (*model.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.act", trace.WithAttributes(
		attribute.Int64("booking.id", int64(id)), attribute.String("action", action)))
	defer span.End()

	var target model.BookingStatus
	switch action {
	case ActionConfirm:
		target = model.BookingConfirmed
	case ActionCancel:
		target = model.BookingCancelled
	case ActionComplete:
		target = model.BookingCompleted
	default:
		return nil, ErrUnknownAction
	}

	b, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	isHost := b.SpaceOwnerID == actorID
	if target != model.BookingCancelled && !isHost {
		return nil, repository.ErrForbidden
	}
	if err := model.Transition(b.Status, target); err != nil {
		return nil, err
	}
	if err := s.bookings.UpdateStatus(ctx, b.ID, b.Status, target); err != nil {
		span.RecordError(err)
		return nil, err
	}
	prev := b.Status
	b.Status = target
	b.UpdatedAt = s.clock.Now()
	s.publish(ctx, queue.KeyBookingStatusChanged, b, prev)
	return b, nil
}

// Delete removes a PENDING booking on behalf of its renter.
func (s *BookingService) Delete(ctx context.Context, actorID, id uint64) error {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.UserID != actorID {
		return repository.ErrForbidden
	}
	if b.Status != model.BookingPending {
		return ErrNotPending
	}
	if err := s.bookings.DeletePending(ctx, id, actorID); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return ErrNotPending
		}
		return err
	}
	return nil
}

// Listing is the availability picture of a space over a date range.
type Listing struct {
	SpaceID  uint64
	From     *time.Time
	To       *time.Time
	Windows  []model.BlockedWindow
	Bookings []model.Booking
	Verdict  *availability.Result // only when both dates were given
}

// AvailabilityListing returns the windows whose date falls in [from, to]
// and the active bookings touching those days.  Without a range, bookings
// of the next 30 days from today are listed.  With both dates the
// evaluator verdict for the whole days from..to is included.
func (s *BookingService) AvailabilityListing(ctx context.Context, spaceID uint64, from, to *time.Time) (*Listing, error) {
	space, err := s.spaces.GetByID(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	windows, err := s.windows.ListBySpace(ctx, spaceID, from, to)
	if err != nil {
		return nil, err
	}

	start := truncateDay(s.clock.Now())
	if from != nil {
		start = truncateDay(*from)
	}
	end := start.Add(defaultListingSpan)
	if to != nil {
		end = truncateDay(*to).Add(24 * time.Hour)
	}
	out := &Listing{SpaceID: spaceID, From: from, To: to, Windows: windows}
	if !end.After(start) {
		return out, nil
	}
	out.Bookings, err = s.bookings.ActiveInRange(ctx, spaceID, start, end)
	if err != nil {
		return nil, err
	}

	if from != nil && to != nil {
		// the verdict needs every blocking window touching the range, not
		// only the ones dated inside it
		blocking, err := s.windows.BlockingInRange(ctx, spaceID, start, end)
		if err != nil {
			return nil, err
		}
		res, err := s.eval.Evaluate(availability.SpaceOf(*space), availability.Interval{Start: start, End: end},
			availability.Occupants(out.Bookings, blocking))
		if err != nil {
			return nil, err
		}
		out.Verdict = &res
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SettlePayment applies a payment outcome to its booking exactly once per
// event id.  A success marks the payment PAID and confirms a PENDING
// booking; a failure marks it FAILED and cancels a booking that is not
// terminal yet.
func (s *BookingService) SettlePayment(ctx context.Context, ev queue.PaymentEvent) error {
	ctx, span := s.tracer.Start(ctx, "booking.settle_payment", trace.WithAttributes(
		attribute.String("event.id", ev.EventID), attribute.String("event.type", ev.Type),
		attribute.Int64("booking.id", int64(ev.BookingID))))
	defer span.End()

	if ev.EventID == "" || ev.BookingID == 0 ||
		(ev.Type != queue.KeyPaymentSucceeded && ev.Type != queue.KeyPaymentFailed) {
		return queue.Permanent(ErrInvalidPaymentEvent)
	}
	now := s.clock.Now()
	var prev model.BookingStatus
	b, applied, err := s.bookings.ApplyPaymentEvent(ctx, ev.EventID, ev.Type, ev.BookingID, func(b *model.Booking) (bool, error) {
		prev = b.Status
		return applyPayment(b, ev, now), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, repository.ErrBookingNotFound) {
			return queue.Permanent(err)
		}
		return err
	}
	if !applied {
		log.Printf("payment-consumer: event %s already processed", ev.EventID)
		return nil
	}
	if b.Status != prev {
		s.publish(ctx, queue.KeyBookingStatusChanged, b, prev)
	}
	return nil
}

// applyPayment mutates b for ev and reports whether anything changed.
func applyPayment(b *model.Booking, ev queue.PaymentEvent, now time.Time) bool {
	switch ev.Type {
	case queue.KeyPaymentSucceeded:
		if b.PaymentStatus == model.PaymentPaid {
			return false
		}
		b.PaymentStatus = model.PaymentPaid
		b.PaymentRef = ev.PaymentRef
		b.PaidAt = &now
		if b.Status == model.BookingPending {
			b.Status = model.BookingConfirmed
		}
		return true
	case queue.KeyPaymentFailed:
		// a late failure never undoes a settled payment
		if b.PaymentStatus == model.PaymentPaid || b.PaymentStatus == model.PaymentFailed {
			return false
		}
		b.PaymentStatus = model.PaymentFailed
		if ev.PaymentRef != "" {
			b.PaymentRef = ev.PaymentRef
		}
		if !b.Status.Terminal() {
			b.Status = model.BookingCancelled
		}
		return true
	}
	return false
}

// publish logs and drops broker errors; the booking is already committed.
func (s *BookingService) publish(ctx context.Context, key string, b *model.Booking, prev model.BookingStatus) {
	if s.events == nil {
		return
	}
	ev := queue.NewBookingEvent(key, b, prev, s.clock.Now())
	if err := s.events.PublishJSON(ctx, key, ev); err != nil {
		log.Printf("booking-service: publish %s for booking %d failed: %v", key, b.ID, err)
	}
}
