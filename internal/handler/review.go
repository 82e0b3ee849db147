package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-rental/internal/model"
	"github.com/iliyamo/parking-rental/internal/repository"
	"github.com/iliyamo/parking-rental/internal/service"
)

// ReviewWorkflow is implemented by *service.ReviewService.
type ReviewWorkflow interface {
	Create(ctx context.Context, authorID uint64, in service.NewReview) (*model.Review, error)
	ForBooking(ctx context.Context, bookingID uint64) ([]model.Review, error)
	List(ctx context.Context, f repository.ReviewFilter, p repository.Page) ([]model.Review, int, error)
}

type ReviewHandler struct {
	Reviews ReviewWorkflow
	Paging  Paging
}

func NewReviewHandler(r ReviewWorkflow, p Paging) *ReviewHandler {
	return &ReviewHandler{Reviews: r, Paging: p}
}

type reviewReq struct {
	BookingID uint64 `json:"bookingId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	Type      string `json:"type"`
}

func (h *ReviewHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.BookingID == 0 {
		return badRequest(c, "bookingId required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	rv, err := h.Reviews.Create(ctx, uid, service.NewReview{
		BookingID: req.BookingID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		Type:      model.ReviewType(strings.ToUpper(strings.TrimSpace(req.Type))),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toReviewResp(*rv))
}

// List pages through reviews filtered by ?spaceId, ?userId (the reviewed
// user) and ?type.
func (h *ReviewHandler) List(c echo.Context) error {
	var f repository.ReviewFilter
	if v := c.QueryParam("spaceId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid spaceId")
		}
		f.SpaceID = &id
	}
	if v := c.QueryParam("userId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid userId")
		}
		f.TargetID = &id
	}
	if v := c.QueryParam("type"); v != "" {
		f.Type = model.ReviewType(strings.ToUpper(v))
		if !f.Type.Valid() {
			return badRequest(c, service.ErrInvalidReviewType.Error())
		}
	}
	page := h.Paging.from(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	reviews, total, err := h.Reviews.List(ctx, f, page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toReviewList(reviews), "pagination": pagination(page, total)})
}

// ForBooking returns the reviews left on one booking.
func (h *ReviewHandler) ForBooking(c echo.Context) error {
	id, err := parseIDParam(c, "bookingId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	reviews, err := h.Reviews.ForBooking(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toReviewList(reviews)})
}
