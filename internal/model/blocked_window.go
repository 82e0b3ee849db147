package model

import "time"

// BlockedWindow is a host-declared time window on a space.  Windows with
// IsBlocked set make the space unavailable for [StartTime, EndTime);
// windows with IsBlocked cleared are informational only.
type BlockedWindow struct {
    ID        uint64    // availability_windows.id
    SpaceID   uint64    // availability_windows.space_id
    Date      time.Time // availability_windows.date (calendar day, UTC midnight)
    StartTime time.Time // availability_windows.start_time
    EndTime   time.Time // availability_windows.end_time (exclusive)
    IsBlocked bool      // availability_windows.is_blocked
    CreatedAt time.Time // availability_windows.created_at
    UpdatedAt time.Time // availability_windows.updated_at
}
