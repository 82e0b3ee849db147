package handler // handler defines http handlers

import (
    "errors"   // errors matches sentinel values returned by lower layers
    "log"      // log records unexpected failures before answering 500
    "net/http" // http status codes
    "strconv"  // strconv converts path and query values to numbers
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/parking-rental/internal/availability"
    "github.com/iliyamo/parking-rental/internal/model"
    "github.com/iliyamo/parking-rental/internal/repository"
    "github.com/iliyamo/parking-rental/internal/service"
)

// dbTimeout bounds every request's database work.
const dbTimeout = 5 * time.Second

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
    switch t := c.Get("user_id").(type) {
    case uint64:
        if t != 0 {
            return t, nil
        }
    case int64:
        if t > 0 {
            return uint64(t), nil
        }
    case float64:
        if t > 0 {
            return uint64(t), nil
        }
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, errors.New("invalid " + name)
    }
    return id, nil
}

// Paging clamps ?page and ?limit.  Bad values fall back to the defaults
// instead of failing the request.
type Paging struct {
    Default int
    Max     int
}

func (p Paging) from(c echo.Context) repository.Page {
    page, err := strconv.Atoi(c.QueryParam("page"))
    if err != nil || page < 1 {
        page = 1
    }
    limit, err := strconv.Atoi(c.QueryParam("limit"))
    if err != nil || limit < 1 {
        limit = p.Default
    }
    if limit > p.Max {
        limit = p.Max
    }
    return repository.Page{Page: page, Limit: limit}
}

type paginationResp struct {
    Page       int `json:"page"`
    Limit      int `json:"limit"`
    Total      int `json:"total"`
    TotalPages int `json:"totalPages"`
}

func pagination(p repository.Page, total int) paginationResp {
    pages := 0
    if p.Limit > 0 {
        pages = (total + p.Limit - 1) / p.Limit
    }
    return paginationResp{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds.
func parseTimestamp(s string) (time.Time, error) {
    t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
    if err != nil {
        return time.Time{}, err
    }
    return t.UTC(), nil
}

// parseDay accepts a calendar date (2006-01-02) or a full timestamp.
func parseDay(s string) (time.Time, error) {
    s = strings.TrimSpace(s)
    if t, err := time.Parse(time.DateOnly, s); err == nil {
        return t, nil
    }
    return parseTimestamp(s)
}

func parseDecimal(s string) (*decimal.Decimal, error) {
    if strings.TrimSpace(s) == "" {
        return nil, nil
    }
    d, err := decimal.NewFromString(strings.TrimSpace(s))
    if err != nil {
        return nil, err
    }
    return &d, nil
}

// respondError maps errors from the service and repository layers to HTTP.
// Anything unrecognised is logged and answered with a generic 500.
func respondError(c echo.Context, err error) error {
    var unavailable *service.UnavailableError
    if errors.As(err, &unavailable) {
        status := http.StatusConflict
        if unavailable.Result.Reason == availability.ReasonSpaceInactive {
            status = http.StatusBadRequest
        }
        body := echo.Map{"error": unavailable.Error(), "reason": unavailable.Result.Reason}
        if unavailable.Result.Conflict != nil {
            body["conflict"] = conflictOf(*unavailable.Result.Conflict)
        }
        return c.JSON(status, body)
    }

    switch {
    case errors.Is(err, repository.ErrUserNotFound),
        errors.Is(err, repository.ErrSpaceNotFound),
        errors.Is(err, repository.ErrWindowNotFound),
        errors.Is(err, repository.ErrBookingNotFound),
        errors.Is(err, repository.ErrReviewNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "conflicts with existing records"})
    case errors.Is(err, repository.ErrReviewExists),
        errors.Is(err, repository.ErrEmailExists),
        errors.Is(err, repository.ErrStaleStatus):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, availability.ErrInvalidInterval),
        errors.Is(err, availability.ErrIntervalTooLong),
        errors.Is(err, availability.ErrInvalidPrice),
        errors.Is(err, model.ErrInvalidTransition),
        errors.Is(err, service.ErrOwnSpace),
        errors.Is(err, service.ErrUnknownAction),
        errors.Is(err, service.ErrNotPending),
        errors.Is(err, service.ErrBookingNotCompleted),
        errors.Is(err, service.ErrInvalidRating),
        errors.Is(err, service.ErrInvalidReviewType):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    log.Printf("http: %s %s: %v", c.Request().Method, c.Path(), err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
