package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-rental/internal/availability"
    "github.com/iliyamo/parking-rental/internal/model"
    "github.com/iliyamo/parking-rental/internal/repository"
    "github.com/iliyamo/parking-rental/internal/service"
)

// BookingWorkflow is implemented by *service.BookingService.
type BookingWorkflow interface {
    Preview(ctx context.Context, spaceID uint64, iv availability.Interval) (availability.Result, error)
    Create(ctx context.Context, renterID uint64, in repository.NewBooking) (*model.Booking, *availability.Pricing, error)
    Get(ctx context.Context, actorID, id uint64) (*model.Booking, error)
    List(ctx context.Context, actorID uint64, asHost bool, status model.BookingStatus, p repository.Page) ([]model.Booking, int, error)
    Act(ctx context.Context, actorID, id uint64, action string) (*model.Booking, error)
    Delete(ctx context.Context, actorID, id uint64) error
    AvailabilityListing(ctx context.Context, spaceID uint64, from, to *time.Time) (*service.Listing, error)
}

type BookingHandler struct {
    Bookings BookingWorkflow
    Paging   Paging
}

func NewBookingHandler(b BookingWorkflow, p Paging) *BookingHandler {
    return &BookingHandler{Bookings: b, Paging: p}
}

type createBookingReq struct {
    SpaceID         uint64 `json:"spaceId"`
    StartDateTime   string `json:"startDateTime"`
    EndDateTime     string `json:"endDateTime"`
    SpecialRequests string `json:"specialRequests"`
}

// Create books a space for the caller.  The response carries the stored
// booking and the pricing breakdown it was charged with.
func (h *BookingHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    var req createBookingReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if req.SpaceID == 0 {
        return badRequest(c, "spaceId required")
    }
    start, err1 := parseTimestamp(req.StartDateTime)
    end, err2 := parseTimestamp(req.EndDateTime)
    if err1 != nil || err2 != nil {
        return badRequest(c, "startDateTime and endDateTime must be ISO-8601 timestamps")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    b, pricing, err := h.Bookings.Create(ctx, uid, repository.NewBooking{
        SpaceID:         req.SpaceID,
        UserID:          uid,
        Start:           start,
        End:             end,
        SpecialRequests: strings.TrimSpace(req.SpecialRequests),
    })
    if err != nil {
        return respondError(c, err)
    }
    out := echo.Map{"booking": toBookingResp(*b)}
    if pricing != nil {
        out["pricing"] = toPricingResp(*pricing)
    }
    return c.JSON(http.StatusCreated, out)
}

// List returns the caller's bookings as renter (?type=client, default) or
// the bookings received on their spaces (?type=host).
func (h *BookingHandler) List(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    asHost := false
    switch strings.ToLower(c.QueryParam("type")) {
    case "", "client":
    case "host":
        asHost = true
    default:
        return badRequest(c, "type must be client or host")
    }
    status := model.BookingStatus(strings.ToUpper(c.QueryParam("status")))
    if status != "" && !status.Valid() {
        return badRequest(c, "invalid status")
    }

    page := h.Paging.from(c)
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    bookings, total, err := h.Bookings.List(ctx, uid, asHost, status, page)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": toBookingList(bookings), "pagination": pagination(page, total)})
}

func (h *BookingHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    id, err := parseIDParam(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    b, err := h.Bookings.Get(ctx, uid, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResp(*b))
}

type actionReq struct {
    Action string `json:"action"`
}

// Act applies confirm, cancel or complete to a booking.
func (h *BookingHandler) Act(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    id, err := parseIDParam(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    var req actionReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    b, err := h.Bookings.Act(ctx, uid, id, strings.ToLower(strings.TrimSpace(req.Action)))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResp(*b))
}

// Delete removes a PENDING booking of the caller.
func (h *BookingHandler) Delete(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    id, err := parseIDParam(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    if err := h.Bookings.Delete(ctx, uid, id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
