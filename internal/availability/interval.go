// Package availability decides whether a parking space is free for a
// requested time range and prices the range when it is.  Everything here is
// pure: callers load the space and its occupants and pass them in.
package availability

import (
	"errors"
	"time"
)

// ErrInvalidInterval is returned when an interval does not end strictly
// after it starts.
var ErrInvalidInterval = errors.New("end must be after start")

// Interval is the half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an Interval and rejects empty or reversed ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

func (iv Interval) Validate() error {
	if !iv.End.After(iv.Start) {
		return ErrInvalidInterval
	}
	return nil
}

// Overlaps reports whether two half-open ranges share an instant.  Ranges
// that only touch (one ends exactly where the other starts) do not overlap.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// DurationHours rounds the length of iv up to whole hours.  It works on
// Unix seconds so ranges longer than time.Duration can hold stay exact.
func DurationHours(iv Interval) int64 {
	secs := iv.End.Unix() - iv.Start.Unix()
	nanos := iv.End.Nanosecond() - iv.Start.Nanosecond()
	if nanos < 0 {
		secs--
		nanos += int(time.Second)
	}
	h := secs / 3600
	if secs%3600 != 0 || nanos != 0 {
		h++
	}
	return h
}
