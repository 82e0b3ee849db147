package service

import (
	"context"
	"strings"

	"github.com/iliyamo/parking-rental/internal/model"
	"github.com/iliyamo/parking-rental/internal/repository"
)

type ReviewStore interface {
	Create(ctx context.Context, rv *model.Review) error
	ListByBooking(ctx context.Context, bookingID uint64) ([]model.Review, error)
	List(ctx context.Context, f repository.ReviewFilter, p repository.Page) ([]model.Review, int, error)
}

type BookingGetter interface {
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
}

type ReviewService struct {
	reviews  ReviewStore
	bookings BookingGetter
}

func NewReviewService(reviews ReviewStore, bookings BookingGetter) *ReviewService {
	return &ReviewService{reviews: reviews, bookings: bookings}
}

// NewReview is the author's input.
type NewReview struct {
	BookingID uint64
	Rating    int
	Comment   string
	Type      model.ReviewType
}

// Create stores a review on a COMPLETED booking.  The renter writes the
// SPACE_REVIEW about the host; the host writes the USER_REVIEW about the
// renter.
func (s *ReviewService) Create(ctx context.Context, authorID uint64, in NewReview) (*model.Review, error) {
	if !in.Type.Valid() {
		return nil, ErrInvalidReviewType
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, ErrInvalidRating
	}
	b, err := s.bookings.GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}

	var target uint64
	switch in.Type {
	case model.SpaceReview:
		if b.UserID != authorID {
			return nil, repository.ErrForbidden
		}
		target = b.SpaceOwnerID
	case model.UserReview:
		if b.SpaceOwnerID != authorID {
			return nil, repository.ErrForbidden
		}
		target = b.UserID
	}
	if b.Status != model.BookingCompleted {
		return nil, ErrBookingNotCompleted
	}

	rv := &model.Review{
		BookingID: b.ID,
		SpaceID:   b.SpaceID,
		AuthorID:  authorID,
		TargetID:  target,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		Type:      in.Type,
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *ReviewService) ForBooking(ctx context.Context, bookingID uint64) ([]model.Review, error) {
	return s.reviews.ListByBooking(ctx, bookingID)
}

func (s *ReviewService) List(ctx context.Context, f repository.ReviewFilter, p repository.Page) ([]model.Review, int, error) {
	return s.reviews.List(ctx, f, p)
}
