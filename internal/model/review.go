package model

import "time"

// ReviewType tells who wrote a review and about whom.
type ReviewType string

const (
    // SpaceReview is written by the renter about the space and its host.
    SpaceReview ReviewType = "SPACE_REVIEW"
    // UserReview is written by the host about the renter.
    UserReview ReviewType = "USER_REVIEW"
)

func (t ReviewType) Valid() bool {
    return t == SpaceReview || t == UserReview
}

// Review mirrors the `reviews` table.  (BookingID, Type) is unique.
type Review struct {
    ID         uint64     // reviews.id
    BookingID  uint64     // reviews.booking_id
    SpaceID    uint64     // reviews.space_id
    AuthorID   uint64     // reviews.author_id
    TargetID   uint64     // reviews.target_id
    Rating     int        // reviews.rating (1..5)
    Comment    string     // reviews.comment
    Type       ReviewType // reviews.type
    CreatedAt  time.Time  // reviews.created_at
    AuthorName string     // users.name of the author, joined
}
