package availability

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/parking-rental/internal/model"
)

var (
	// ErrInvalidPrice means the space carries a non-positive hourly or daily price.
	ErrInvalidPrice = errors.New("space price must be positive")
	// ErrInvalidFeeRate means the platform fee rate is outside [0, 1).
	ErrInvalidFeeRate = errors.New("platform fee rate must be in [0, 1)")
	// ErrIntervalTooLong means the range exceeds the longest bookable stay.
	ErrIntervalTooLong = errors.New("range exceeds the maximum booking length")
)

// Reason explains why a range is unavailable.
type Reason string

const (
	ReasonSpaceInactive      Reason = "SpaceInactive"
	ReasonConflictingBooking Reason = "ConflictingBooking"
	ReasonBlocked            Reason = "Blocked"
)

// OccupantKind distinguishes bookings from host-declared windows.
type OccupantKind string

const (
	KindBooking       OccupantKind = "booking"
	KindBlockedWindow OccupantKind = "blocked_window"
)

// Occupant is anything that may hold a space for an interval.
type Occupant struct {
	Kind     OccupantKind
	Ref      uint64
	Interval Interval
	Status   model.BookingStatus // bookings only
	Blocked  bool                // windows only
}

// obstructs reports whether the occupant takes the space at all: bookings
// that are still PENDING or CONFIRMED, and windows flagged as blocked.
func (o Occupant) obstructs() bool {
	switch o.Kind {
	case KindBooking:
		return o.Status.Occupies()
	case KindBlockedWindow:
		return o.Blocked
	}
	return false
}

func BookingOccupant(b model.Booking) Occupant {
	return Occupant{
		Kind:     KindBooking,
		Ref:      b.ID,
		Interval: Interval{Start: b.StartDateTime, End: b.EndDateTime},
		Status:   b.Status,
	}
}

func WindowOccupant(w model.BlockedWindow) Occupant {
	return Occupant{
		Kind:     KindBlockedWindow,
		Ref:      w.ID,
		Interval: Interval{Start: w.StartTime, End: w.EndTime},
		Blocked:  w.IsBlocked,
	}
}

// Occupants flattens bookings and windows into one slice, bookings first.
func Occupants(bookings []model.Booking, windows []model.BlockedWindow) []Occupant {
	out := make([]Occupant, 0, len(bookings)+len(windows))
	for _, b := range bookings {
		out = append(out, BookingOccupant(b))
	}
	for _, w := range windows {
		out = append(out, WindowOccupant(w))
	}
	return out
}

// Space is the part of a listing the evaluator looks at.
type Space struct {
	ID           uint64
	PricePerHour decimal.Decimal
	PricePerDay  decimal.NullDecimal
	IsActive     bool
}

func SpaceOf(s model.Space) Space {
	return Space{ID: s.ID, PricePerHour: s.PricePerHour, PricePerDay: s.PricePerDay, IsActive: s.IsActive}
}

// Pricing is the cost breakdown of an available range.
// PlatformFee + OwnerAmount == TotalAmount always holds.
type Pricing struct {
	DurationHours int64
	Days          int64 // zero when the hourly rate was used
	TotalAmount   decimal.Decimal
	PlatformFee   decimal.Decimal
	OwnerAmount   decimal.Decimal
	PricePerHour  decimal.Decimal
	PricePerDay   decimal.NullDecimal
}

// Result is the verdict for one range.  Conflict is set for
// ConflictingBooking and Blocked; Pricing is set only when Available.
type Result struct {
	Available bool
	Reason    Reason
	Conflict  *Occupant
	Pricing   *Pricing
}

// Evaluator checks availability and prices ranges with a fixed platform fee
// rate.  It holds no mutable state and may be shared between goroutines.
type Evaluator struct {
	feeRate  decimal.Decimal
	maxHours int64 // zero means no limit
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMaxDays rejects ranges longer than days whole days with
// ErrIntervalTooLong.  Zero or negative disables the limit.
func WithMaxDays(days int) Option {
	return func(e *Evaluator) {
		if days > 0 {
			e.maxHours = int64(days) * 24
		}
	}
}

func NewEvaluator(feeRate decimal.Decimal, opts ...Option) (*Evaluator, error) {
	if err := validateFeeRate(feeRate); err != nil {
		return nil, err
	}
	e := &Evaluator{feeRate: feeRate}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Evaluator) FeeRate() decimal.Decimal { return e.feeRate }

func validateFeeRate(r decimal.Decimal) error {
	if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ErrInvalidFeeRate
	}
	return nil
}

func (e *Evaluator) validateInterval(iv Interval) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	if e.maxHours > 0 && DurationHours(iv) > e.maxHours {
		return ErrIntervalTooLong
	}
	return nil
}

func validatePrices(s Space) error {
	if !s.PricePerHour.IsPositive() {
		return ErrInvalidPrice
	}
	if s.PricePerDay.Valid && !s.PricePerDay.Decimal.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

// Evaluate decides whether iv is free on space given its occupants.  Errors
// are reserved for bad input; an occupied or inactive space is a normal
// Result with Available false.  Checks run in this order: interval and its
// length, prices, active flag, bookings, blocked windows.
func (e *Evaluator) Evaluate(space Space, iv Interval, occupants []Occupant) (Result, error) {
	if err := e.validateInterval(iv); err != nil {
		return Result{}, err
	}
	if err := validatePrices(space); err != nil {
		return Result{}, err
	}
	if err := validateFeeRate(e.feeRate); err != nil {
		return Result{}, err
	}
	if !space.IsActive {
		return Result{Reason: ReasonSpaceInactive}, nil
	}
	if o, ok := firstConflict(iv, occupants, KindBooking); ok {
		return Result{Reason: ReasonConflictingBooking, Conflict: &o}, nil
	}
	if o, ok := firstConflict(iv, occupants, KindBlockedWindow); ok {
		return Result{Reason: ReasonBlocked, Conflict: &o}, nil
	}
	p := e.price(space, iv)
	return Result{Available: true, Pricing: &p}, nil
}

func firstConflict(iv Interval, occupants []Occupant, kind OccupantKind) (Occupant, bool) {
	for _, o := range occupants {
		if o.Kind != kind || !o.obstructs() {
			continue
		}
		if iv.Overlaps(o.Interval) {
			return o, true
		}
	}
	return Occupant{}, false
}

// Price computes the cost of iv without looking at occupants.
func (e *Evaluator) Price(space Space, iv Interval) (Pricing, error) {
	if err := e.validateInterval(iv); err != nil {
		return Pricing{}, err
	}
	if err := validatePrices(space); err != nil {
		return Pricing{}, err
	}
	return e.price(space, iv), nil
}

// price applies the daily rate from 24 started hours on when one is set,
// otherwise the hourly rate.  Rounding happens once, on the fee.
func (e *Evaluator) price(space Space, iv Interval) Pricing {
	hours := DurationHours(iv)
	p := Pricing{
		DurationHours: hours,
		PricePerHour:  space.PricePerHour,
		PricePerDay:   space.PricePerDay,
	}
	if hours >= 24 && space.PricePerDay.Valid {
		p.Days = (hours + 23) / 24
		p.TotalAmount = space.PricePerDay.Decimal.Mul(decimal.NewFromInt(p.Days))
	} else {
		p.TotalAmount = space.PricePerHour.Mul(decimal.NewFromInt(hours))
	}
	p.PlatformFee = p.TotalAmount.Mul(e.feeRate).Round(2)
	p.OwnerAmount = p.TotalAmount.Sub(p.PlatformFee)
	return p
}
