package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/iliyamo/parking-rental/internal/availability"
	"github.com/iliyamo/parking-rental/internal/clock"
	"github.com/iliyamo/parking-rental/internal/model"
	"github.com/iliyamo/parking-rental/internal/repository"
)

var now = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// memStore keeps bookings in memory.  A single mutex plays the role of the
// space row lock.
type memStore struct {
	mu        sync.Mutex
	spaces    map[uint64]*model.Space
	bookings  map[uint64]*model.Booking
	windows   []model.BlockedWindow
	processed map[string]bool
	nextID    uint64
}

func newMemStore(spaces ...*model.Space) *memStore {
	m := &memStore{
		spaces:    map[uint64]*model.Space{},
		bookings:  map[uint64]*model.Booking{},
		processed: map[string]bool{},
		nextID:    100,
	}
	for _, s := range spaces {
		m.spaces[s.ID] = s
	}
	return m
}

func (m *memStore) active(spaceID uint64, from, to time.Time) []model.Booking {
	var out []model.Booking
	for _, b := range m.bookings {
		if b.SpaceID == spaceID && b.Status.Occupies() && b.StartDateTime.Before(to) && b.EndDateTime.After(from) {
			out = append(out, *b)
		}
	}
	return out
}

func (m *memStore) blocking(spaceID uint64, from, to time.Time) []model.BlockedWindow {
	var out []model.BlockedWindow
	for _, w := range m.windows {
		if w.SpaceID == spaceID && w.IsBlocked && w.StartTime.Before(to) && w.EndTime.After(from) {
			out = append(out, w)
		}
	}
	return out
}

func (m *memStore) CreateChecked(_ context.Context, in repository.NewBooking, check repository.BookingCheck) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	space, ok := m.spaces[in.SpaceID]
	if !ok {
		return nil, repository.ErrSpaceNotFound
	}
	draft, err := check(space, m.active(in.SpaceID, in.Start, in.End), m.blocking(in.SpaceID, in.Start, in.End))
	if err != nil {
		return nil, err
	}
	m.nextID++
	b := &model.Booking{
		ID: m.nextID, SpaceID: in.SpaceID, UserID: in.UserID,
		StartDateTime: in.Start, EndDateTime: in.End, Status: draft.Status,
		TotalAmount: draft.TotalAmount, PlatformFee: draft.PlatformFee, OwnerAmount: draft.OwnerAmount,
		PaymentStatus: model.PaymentPending, SpecialRequests: in.SpecialRequests,
		SpaceOwnerID: space.OwnerID, SpaceTitle: space.Title,
	}
	m.bookings[b.ID] = b
	cp := *b
	return &cp, nil
}

func (m *memStore) put(b model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.spaces[b.SpaceID]; ok {
		b.SpaceOwnerID = s.OwnerID
	}
	m.bookings[b.ID] = &b
}

func (m *memStore) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) List(_ context.Context, f repository.BookingFilter, _ repository.Page) ([]model.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if f.UserID != nil && b.UserID != *f.UserID {
			continue
		}
		if f.OwnerID != nil && b.SpaceOwnerID != *f.OwnerID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uint64, from, to model.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return repository.ErrStaleStatus
	}
	b.Status = to
	return nil
}

func (m *memStore) DeletePending(_ context.Context, id, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.UserID != userID || b.Status != model.BookingPending {
		return repository.ErrStaleStatus
	}
	delete(m.bookings, id)
	return nil
}

func (m *memStore) ActiveInRange(_ context.Context, spaceID uint64, from, to time.Time) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active(spaceID, from, to), nil
}

func (m *memStore) ApplyPaymentEvent(_ context.Context, eventID, _ string, bookingID uint64, apply repository.SettlementApply) (*model.Booking, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed[eventID] {
		return nil, false, nil
	}
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, false, repository.ErrBookingNotFound
	}
	cp := *b
	changed, err := apply(&cp)
	if err != nil {
		return nil, false, err
	}
	if changed {
		*b = cp
	}
	m.processed[eventID] = true
	return &cp, true, nil
}

// SpaceReader
type memSpaces struct{ m *memStore }

func (s memSpaces) GetByID(_ context.Context, id uint64) (*model.Space, error) {
	sp, ok := s.m.spaces[id]
	if !ok {
		return nil, repository.ErrSpaceNotFound
	}
	cp := *sp
	return &cp, nil
}

// WindowReader
type memWindows struct{ m *memStore }

func (w memWindows) BlockingInRange(_ context.Context, spaceID uint64, from, to time.Time) ([]model.BlockedWindow, error) {
	return w.m.blocking(spaceID, from, to), nil
}

func (w memWindows) ListBySpace(_ context.Context, spaceID uint64, from, to *time.Time) ([]model.BlockedWindow, error) {
	var out []model.BlockedWindow
	for _, x := range w.m.windows {
		if from != nil && x.Date.Before(truncateDay(*from)) {
			continue
		}
		if to != nil && x.Date.After(truncateDay(*to)) {
			continue
		}
		if x.SpaceID == spaceID {
			out = append(out, x)
		}
	}
	return out, nil
}

type published struct {
	key string
	v   any
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{key, v})
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.key)
	}
	return out
}

const (
	hostID   = uint64(9)
	renterID = uint64(5)
)

func garage(autoApprove bool) *model.Space {
	return &model.Space{
		ID: 3, OwnerID: hostID, Title: "Garage", IsActive: true, AutoApprove: autoApprove,
		PricePerHour: decimal.RequireFromString("5.00"),
		PricePerDay:  decimal.NewNullDecimal(decimal.RequireFromString("25.00")),
	}
}

func newBookingService(store *memStore) (*BookingService, *recordingPublisher) {
	eval, err := availability.NewEvaluator(decimal.RequireFromString("0.15"))
	if err != nil {
		panic(err)
	}
	pub := &recordingPublisher{}
	svc := NewBookingService(eval, store, memSpaces{store}, memWindows{store}, pub,
		clock.NewFixed(now), noop.NewTracerProvider().Tracer("test"))
	return svc, pub
}
