package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"
)

// BookingLog appends booking events to a text file, one line per event.
type BookingLog struct {
    path string
    mu   sync.Mutex
}

func NewBookingLog(path string) *BookingLog {
    return &BookingLog{path: path}
}

// Handle is a Handler for booking.* messages.
func (l *BookingLog) Handle(_ context.Context, key string, body []byte) error {
    var ev BookingEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return Permanent(fmt.Errorf("unmarshal: %w", err))
    }
    if ev.Type == "" {
        ev.Type = key
    }

    l.mu.Lock()
    defer l.mu.Unlock()
    if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(bookingLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func bookingLine(ev BookingEvent) string {
    status := ev.Status
    if ev.PreviousStatus != "" {
        status = ev.PreviousStatus + "->" + ev.Status
    }
    return fmt.Sprintf("[%s] %s | booking_id=%d | space_id=%d | user_id=%d | owner_id=%d | space=%q | status=%s | from=%s | to=%s | total=%s | fee=%s | owner=%s\n",
        ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.BookingID, ev.SpaceID, ev.UserID, ev.OwnerID, ev.SpaceTitle,
        status, ev.StartDateTime.UTC().Format(time.RFC3339), ev.EndDateTime.UTC().Format(time.RFC3339),
        ev.TotalAmount, ev.PlatformFee, ev.OwnerAmount)
}
