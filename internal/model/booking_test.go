package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestBookingTransitions(t *testing.T) {
    all := []BookingStatus{BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted}
    allowed := map[[2]BookingStatus]bool{
        {BookingPending, BookingConfirmed}:   true,
        {BookingPending, BookingCancelled}:   true,
        {BookingConfirmed, BookingCompleted}: true,
        {BookingConfirmed, BookingCancelled}: true,
    }
    for _, from := range all {
        for _, to := range all {
            want := allowed[[2]BookingStatus{from, to}]
            assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
            if want {
                assert.NoError(t, Transition(from, to))
            } else {
                assert.ErrorIs(t, Transition(from, to), ErrInvalidTransition)
            }
        }
    }
}

func TestBookingStatusFlags(t *testing.T) {
    assert.True(t, BookingPending.Occupies())
    assert.True(t, BookingConfirmed.Occupies())
    assert.False(t, BookingCancelled.Occupies())
    assert.False(t, BookingCompleted.Occupies())

    assert.True(t, BookingCancelled.Terminal())
    assert.True(t, BookingCompleted.Terminal())
    assert.False(t, BookingPending.Terminal())

    assert.False(t, BookingStatus("EXPIRED").Valid())
}

func TestInitialStatus(t *testing.T) {
    assert.Equal(t, BookingConfirmed, InitialStatus(true))
    assert.Equal(t, BookingPending, InitialStatus(false))
}
