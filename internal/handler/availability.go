package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-rental/internal/availability"
	"github.com/iliyamo/parking-rental/internal/model"
)

// WindowStore is implemented by *repository.WindowRepo.
type WindowStore interface {
	Create(ctx context.Context, ownerID uint64, w *model.BlockedWindow) error
	Update(ctx context.Context, ownerID uint64, w *model.BlockedWindow) error
	Delete(ctx context.Context, ownerID, spaceID, windowID uint64) error
}

// AvailabilityHandler serves the availability calendar of a space, the
// check-availability preview and the host's window management.
type AvailabilityHandler struct {
	Bookings BookingWorkflow
	Windows  WindowStore
}

func NewAvailabilityHandler(b BookingWorkflow, w WindowStore) *AvailabilityHandler {
	return &AvailabilityHandler{Bookings: b, Windows: w}
}

type checkReq struct {
	StartDateTime string `json:"startDateTime"`
	EndDateTime   string `json:"endDateTime"`
}

// Check evaluates a range without booking it.  The answer may be stale by
// the time a booking is attempted; creation checks again under a lock.
func (h *AvailabilityHandler) Check(c echo.Context) error {
	spaceID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req checkReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	start, err1 := parseTimestamp(req.StartDateTime)
	end, err2 := parseTimestamp(req.EndDateTime)
	if err1 != nil || err2 != nil {
		return badRequest(c, "startDateTime and endDateTime must be ISO-8601 timestamps")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	res, err := h.Bookings.Preview(ctx, spaceID, availability.Interval{Start: start, End: end})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toVerdict(res))
}

type occupiedResp struct {
	ID            uint64              `json:"id"`
	StartDateTime time.Time           `json:"startDateTime"`
	EndDateTime   time.Time           `json:"endDateTime"`
	Status        model.BookingStatus `json:"status"`
}

// Listing returns the windows and active bookings of a space between
// ?startDate and ?endDate (inclusive days).  With both dates the verdict for
// the whole range is attached under "availability".
func (h *AvailabilityHandler) Listing(c echo.Context) error {
	spaceID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var from, to *time.Time
	if v := c.QueryParam("startDate"); v != "" {
		t, err := parseDay(v)
		if err != nil {
			return badRequest(c, "invalid startDate")
		}
		from = &t
	}
	if v := c.QueryParam("endDate"); v != "" {
		t, err := parseDay(v)
		if err != nil {
			return badRequest(c, "invalid endDate")
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return badRequest(c, "endDate must not be before startDate")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	l, err := h.Bookings.AvailabilityListing(ctx, spaceID, from, to)
	if err != nil {
		return respondError(c, err)
	}

	windows := make([]windowResp, 0, len(l.Windows))
	for _, w := range l.Windows {
		windows = append(windows, toWindowResp(w))
	}
	// other renters' details stay private
	bookings := make([]occupiedResp, 0, len(l.Bookings))
	for _, b := range l.Bookings {
		bookings = append(bookings, occupiedResp{ID: b.ID, StartDateTime: b.StartDateTime.UTC(), EndDateTime: b.EndDateTime.UTC(), Status: b.Status})
	}
	out := echo.Map{"spaceId": l.SpaceID, "windows": windows, "bookings": bookings}
	if l.Verdict != nil {
		out["availability"] = toVerdict(*l.Verdict)
	}
	return c.JSON(http.StatusOK, out)
}

type windowReq struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	IsBlocked *bool  `json:"isBlocked"`
}

// clockOn accepts either a full timestamp or a wall-clock "15:04" on day.
func clockOn(day *time.Time, s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := parseTimestamp(s); err == nil {
		return t, true
	}
	if day == nil {
		return time.Time{}, false
	}
	hm, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, false
	}
	return day.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute), true
}

// toWindow validates the body.  The date defaults to the day of startTime.
func (r windowReq) toWindow(spaceID uint64) (*model.BlockedWindow, string) {
	var day *time.Time
	if r.Date != "" {
		d, err := parseDay(r.Date)
		if err != nil {
			return nil, "invalid date"
		}
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		day = &d
	}
	start, ok1 := clockOn(day, r.StartTime)
	end, ok2 := clockOn(day, r.EndTime)
	if !ok1 || !ok2 {
		return nil, "startTime and endTime must be timestamps, or HH:MM together with date"
	}
	if !end.After(start) {
		return nil, availability.ErrInvalidInterval.Error()
	}
	if day == nil {
		d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		day = &d
	}
	blocked := false
	if r.IsBlocked != nil {
		blocked = *r.IsBlocked
	}
	return &model.BlockedWindow{SpaceID: spaceID, Date: *day, StartTime: start, EndTime: end, IsBlocked: blocked}, ""
}

// CreateWindow adds a window to a space the caller owns.
func (h *AvailabilityHandler) CreateWindow(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	spaceID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req windowReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	w, msg := req.toWindow(spaceID)
	if w == nil {
		return badRequest(c, msg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Windows.Create(ctx, uid, w); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toWindowResp(*w))
}

// UpdateWindow replaces the range and flag of a window.
func (h *AvailabilityHandler) UpdateWindow(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	spaceID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	windowID, err := parseIDParam(c, "windowId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req windowReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	w, msg := req.toWindow(spaceID)
	if w == nil {
		return badRequest(c, msg)
	}
	w.ID = windowID

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Windows.Update(ctx, uid, w); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toWindowResp(*w))
}

func (h *AvailabilityHandler) DeleteWindow(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	spaceID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	windowID, err := parseIDParam(c, "windowId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Windows.Delete(ctx, uid, spaceID, windowID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
