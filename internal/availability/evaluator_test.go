package availability

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-rental/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func hourly(price string) Space {
	return Space{ID: 1, PricePerHour: dec(price), IsActive: true}
}

func withDaily(hour, day string) Space {
	s := hourly(hour)
	s.PricePerDay = decimal.NewNullDecimal(dec(day))
	return s
}

func newEval(t *testing.T, rate string) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(dec(rate))
	require.NoError(t, err)
	return e
}

func confirmedBooking(id uint64, start, end time.Time) Occupant {
	return BookingOccupant(model.Booking{ID: id, StartDateTime: start, EndDateTime: end, Status: model.BookingConfirmed})
}

func TestEvaluateScenarios(t *testing.T) {
	e := newEval(t, "0.15")

	t.Run("eight hours hourly", func(t *testing.T) {
		res, err := e.Evaluate(hourly("5.00"), Interval{Start: at(9, 0), End: at(17, 0)}, nil)
		require.NoError(t, err)
		require.True(t, res.Available)
		require.NotNil(t, res.Pricing)
		assert.Equal(t, int64(8), res.Pricing.DurationHours)
		assert.Equal(t, "40.00", res.Pricing.TotalAmount.StringFixed(2))
		assert.Equal(t, "6.00", res.Pricing.PlatformFee.StringFixed(2))
		assert.Equal(t, "34.00", res.Pricing.OwnerAmount.StringFixed(2))
		assert.Nil(t, res.Conflict)
	})

	t.Run("overlapping confirmed booking", func(t *testing.T) {
		occ := []Occupant{confirmedBooking(7, at(10, 0), at(12, 0))}
		res, err := e.Evaluate(hourly("5.00"), Interval{Start: at(11, 0), End: at(13, 0)}, occ)
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, ReasonConflictingBooking, res.Reason)
		require.NotNil(t, res.Conflict)
		assert.Equal(t, uint64(7), res.Conflict.Ref)
		assert.Nil(t, res.Pricing)
	})

	t.Run("touching booking", func(t *testing.T) {
		occ := []Occupant{confirmedBooking(7, at(10, 0), at(12, 0))}
		res, err := e.Evaluate(hourly("5.00"), Interval{Start: at(12, 0), End: at(14, 0)}, occ)
		require.NoError(t, err)
		assert.True(t, res.Available)
		assert.Equal(t, "10.00", res.Pricing.TotalAmount.StringFixed(2))
	})

	t.Run("thirty hours with daily rate", func(t *testing.T) {
		res, err := e.Evaluate(withDaily("5.00", "25.00"), Interval{Start: at(0, 0), End: at(30, 0)}, nil)
		require.NoError(t, err)
		require.True(t, res.Available)
		assert.Equal(t, int64(30), res.Pricing.DurationHours)
		assert.Equal(t, int64(2), res.Pricing.Days)
		assert.Equal(t, "50.00", res.Pricing.TotalAmount.StringFixed(2))
	})

	t.Run("inactive space", func(t *testing.T) {
		s := hourly("5.00")
		s.IsActive = false
		res, err := e.Evaluate(s, Interval{Start: at(9, 0), End: at(10, 0)}, nil)
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, ReasonSpaceInactive, res.Reason)
	})

	t.Run("empty interval", func(t *testing.T) {
		_, err := e.Evaluate(hourly("5.00"), Interval{Start: at(9, 0), End: at(9, 0)}, nil)
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})
}

func TestEvaluateInactiveIgnoresOccupantsAndInterval(t *testing.T) {
	e := newEval(t, "0.15")
	s := hourly("5.00")
	s.IsActive = false
	occ := []Occupant{confirmedBooking(1, at(0, 0), at(48, 0))}
	for _, iv := range []Interval{
		{Start: at(1, 0), End: at(2, 0)},
		{Start: at(50, 0), End: at(51, 0)},
	} {
		res, err := e.Evaluate(s, iv, occ)
		require.NoError(t, err)
		assert.Equal(t, ReasonSpaceInactive, res.Reason)
		assert.Nil(t, res.Conflict)
	}
}

func TestEvaluateIgnoresInertOccupants(t *testing.T) {
	e := newEval(t, "0.15")
	iv := Interval{Start: at(10, 0), End: at(12, 0)}
	occ := []Occupant{
		BookingOccupant(model.Booking{ID: 1, StartDateTime: at(9, 0), EndDateTime: at(13, 0), Status: model.BookingCancelled}),
		BookingOccupant(model.Booking{ID: 2, StartDateTime: at(9, 0), EndDateTime: at(13, 0), Status: model.BookingCompleted}),
		WindowOccupant(model.BlockedWindow{ID: 3, StartTime: at(9, 0), EndTime: at(13, 0), IsBlocked: false}),
	}
	res, err := e.Evaluate(hourly("5.00"), iv, occ)
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestEvaluatePendingBookingOccupies(t *testing.T) {
	e := newEval(t, "0.15")
	occ := []Occupant{BookingOccupant(model.Booking{ID: 4, StartDateTime: at(9, 0), EndDateTime: at(11, 0), Status: model.BookingPending})}
	res, err := e.Evaluate(hourly("5.00"), Interval{Start: at(10, 0), End: at(12, 0)}, occ)
	require.NoError(t, err)
	assert.Equal(t, ReasonConflictingBooking, res.Reason)
}

func TestEvaluateBlockedWindow(t *testing.T) {
	e := newEval(t, "0.15")
	occ := Occupants(nil, []model.BlockedWindow{{ID: 9, StartTime: at(14, 0), EndTime: at(18, 0), IsBlocked: true}})

	res, err := e.Evaluate(hourly("5.00"), Interval{Start: at(17, 0), End: at(19, 0)}, occ)
	require.NoError(t, err)
	assert.Equal(t, ReasonBlocked, res.Reason)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, KindBlockedWindow, res.Conflict.Kind)
	assert.Equal(t, uint64(9), res.Conflict.Ref)

	res, err = e.Evaluate(hourly("5.00"), Interval{Start: at(18, 0), End: at(19, 0)}, occ)
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestEvaluateRejectsBadPrices(t *testing.T) {
	e := newEval(t, "0.15")
	iv := Interval{Start: at(9, 0), End: at(10, 0)}

	_, err := e.Evaluate(hourly("0"), iv, nil)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = e.Evaluate(hourly("-1"), iv, nil)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = e.Evaluate(withDaily("5", "0"), iv, nil)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestNewEvaluatorFeeRate(t *testing.T) {
	for _, bad := range []string{"-0.01", "1", "1.5"} {
		_, err := NewEvaluator(dec(bad))
		assert.ErrorIs(t, err, ErrInvalidFeeRate, bad)
	}
	for _, ok := range []string{"0", "0.15", "0.25", "0.999"} {
		_, err := NewEvaluator(dec(ok))
		assert.NoError(t, err, ok)
	}
}

func TestDailyRateOnlyFromTwentyFourHours(t *testing.T) {
	e := newEval(t, "0.15")
	s := withDaily("5.00", "25.00")

	p, err := e.Price(s, Interval{Start: at(0, 0), End: at(23, 0)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Days)
	assert.Equal(t, "115.00", p.TotalAmount.StringFixed(2))

	p, err = e.Price(s, Interval{Start: at(0, 0), End: at(24, 0)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Days)
	assert.Equal(t, "25.00", p.TotalAmount.StringFixed(2))

	p, err = e.Price(s, Interval{Start: at(0, 0), End: at(48, 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(49), p.DurationHours)
	assert.Equal(t, int64(3), p.Days)
	assert.Equal(t, "75.00", p.TotalAmount.StringFixed(2))
}

func TestFeeSplitHasNoLeak(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rates := []string{"0", "0.15", "0.25", "0.175", "0.333"}
	for i := 0; i < 2000; i++ {
		e := newEval(t, rates[rng.Intn(len(rates))])
		cents := int64(1 + rng.Intn(10000))
		s := hourly(decimal.New(cents, -2).String())
		if rng.Intn(2) == 0 {
			s.PricePerDay = decimal.NewNullDecimal(decimal.New(int64(1+rng.Intn(50000)), -2))
		}
		iv := Interval{Start: base, End: base.Add(time.Duration(1+rng.Intn(100*60)) * time.Minute)}
		p, err := e.Price(s, iv)
		require.NoError(t, err)
		require.True(t, p.PlatformFee.Add(p.OwnerAmount).Equal(p.TotalAmount),
			"fee %s + owner %s != total %s", p.PlatformFee, p.OwnerAmount, p.TotalAmount)
		require.LessOrEqual(t, -p.PlatformFee.Exponent(), int32(2))
	}
}

func TestFeeRoundsHalfAwayFromZero(t *testing.T) {
	e := newEval(t, "0.15")
	// 0.10 * 0.15 = 0.015 -> 0.02
	p, err := e.Price(hourly("0.10"), Interval{Start: at(0, 0), End: at(1, 0)})
	require.NoError(t, err)
	assert.Equal(t, "0.02", p.PlatformFee.StringFixed(2))
	assert.Equal(t, "0.08", p.OwnerAmount.StringFixed(2))
}

// Within one rate regime, a longer stay never costs less.
func TestPricingMonotonicInDuration(t *testing.T) {
	e := newEval(t, "0.15")

	prev := decimal.Zero
	for m := 1; m <= 72*60; m += 7 {
		p, err := e.Price(hourly("3.50"), Interval{Start: base, End: base.Add(time.Duration(m) * time.Minute)})
		require.NoError(t, err)
		require.True(t, p.TotalAmount.GreaterThanOrEqual(prev), "minute %d", m)
		prev = p.TotalAmount
	}

	prev = decimal.Zero
	for m := 24 * 60; m <= 10*24*60; m += 13 {
		p, err := e.Price(withDaily("3.50", "40.00"), Interval{Start: base, End: base.Add(time.Duration(m) * time.Minute)})
		require.NoError(t, err)
		require.True(t, p.TotalAmount.GreaterThanOrEqual(prev), "minute %d", m)
		prev = p.TotalAmount
	}
}

func TestDailyRateUndercutsHourlyAtThreshold(t *testing.T) {
	e := newEval(t, "0.15")
	s := withDaily("5.00", "25.00")

	p23, err := e.Price(s, Interval{Start: base, End: base.Add(23 * time.Hour)})
	require.NoError(t, err)
	p24, err := e.Price(s, Interval{Start: base, End: base.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "115.00", p23.TotalAmount.StringFixed(2))
	assert.Equal(t, "25.00", p24.TotalAmount.StringFixed(2))
}

func TestEvaluateIsIdempotentAndConcurrent(t *testing.T) {
	e := newEval(t, "0.15")
	s := withDaily("4.25", "60.00")
	iv := Interval{Start: at(8, 0), End: at(40, 30)}
	occ := []Occupant{confirmedBooking(1, at(0, 0), at(8, 0))}

	first, err := e.Evaluate(s, iv, occ)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := e.Evaluate(s, iv, occ)
			assert.NoError(t, err)
			assert.Equal(t, first.Available, again.Available)
			assert.True(t, first.Pricing.TotalAmount.Equal(again.Pricing.TotalAmount))
			assert.True(t, first.Pricing.PlatformFee.Equal(again.Pricing.PlatformFee))
		}()
	}
	wg.Wait()
}

func TestLongRangesArePricedExactly(t *testing.T) {
	e := newEval(t, "0.15")
	start := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := e.Price(hourly("1.00"), Interval{Start: start, End: time.Date(500, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, int64(4374144), p.DurationHours)
	assert.Equal(t, "4374144.00", p.TotalAmount.StringFixed(2))
}

func TestMaxDaysRejectsLongRanges(t *testing.T) {
	e, err := NewEvaluator(dec("0.15"), WithMaxDays(30))
	require.NoError(t, err)

	ok := Interval{Start: base, End: base.Add(30 * 24 * time.Hour)}
	res, err := e.Evaluate(withDaily("5", "25"), ok, nil)
	require.NoError(t, err)
	assert.True(t, res.Available)

	long := Interval{Start: base, End: base.Add(30*24*time.Hour + time.Minute)}
	_, err = e.Evaluate(withDaily("5", "25"), long, nil)
	assert.ErrorIs(t, err, ErrIntervalTooLong)
	_, err = e.Price(hourly("5"), long)
	assert.ErrorIs(t, err, ErrIntervalTooLong)

	// inactive spaces still report the length problem first
	inactive := hourly("5")
	inactive.IsActive = false
	_, err = e.Evaluate(inactive, long, nil)
	assert.ErrorIs(t, err, ErrIntervalTooLong)

	unlimited, err := NewEvaluator(dec("0.15"), WithMaxDays(0))
	require.NoError(t, err)
	_, err = unlimited.Price(hourly("5"), long)
	assert.NoError(t, err)
}
