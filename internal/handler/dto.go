package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/parking-rental/internal/availability"
	"github.com/iliyamo/parking-rental/internal/model"
	"github.com/iliyamo/parking-rental/internal/repository"
)

// Money is rendered as a string with two decimals ("12.50") so clients
// never round through a float.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}

type spaceResp struct {
	ID            uint64              `json:"id"`
	OwnerID       uint64              `json:"ownerId"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Address       string              `json:"address"`
	Latitude      float64             `json:"latitude"`
	Longitude     float64             `json:"longitude"`
	PricePerHour  string              `json:"pricePerHour"`
	PricePerDay   *string             `json:"pricePerDay"`
	SpaceType     model.SpaceType     `json:"spaceType"`
	VehicleTypes  []model.VehicleType `json:"vehicleTypes"`
	Amenities     []model.Amenity     `json:"amenities"`
	Instructions  string              `json:"instructions"`
	AutoApprove   bool                `json:"autoApprove"`
	IsActive      bool                `json:"isActive"`
	AverageRating string              `json:"averageRating"`
	ReviewCount   int                 `json:"reviewCount"`
	BookingCount  int                 `json:"bookingCount"`
	DistanceKm    *float64            `json:"distanceKm,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func toSpaceResp(l repository.SpaceListing) spaceResp {
	vt, am := l.VehicleTypes, l.Amenities
	if vt == nil {
		vt = []model.VehicleType{}
	}
	if am == nil {
		am = []model.Amenity{}
	}
	return spaceResp{
		ID:            l.ID,
		OwnerID:       l.OwnerID,
		Title:         l.Title,
		Description:   l.Description,
		Address:       l.Address,
		Latitude:      l.Latitude,
		Longitude:     l.Longitude,
		PricePerHour:  money(l.PricePerHour),
		PricePerDay:   nullMoney(l.PricePerDay),
		SpaceType:     l.SpaceType,
		VehicleTypes:  vt,
		Amenities:     am,
		Instructions:  l.Instructions,
		AutoApprove:   l.AutoApprove,
		IsActive:      l.IsActive,
		AverageRating: l.Stats.AverageRating.StringFixed(1),
		ReviewCount:   l.Stats.ReviewCount,
		BookingCount:  l.Stats.BookingCount,
		DistanceKm:    l.DistanceKm,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func toSpaceList(ls []repository.SpaceListing) []spaceResp {
	out := make([]spaceResp, 0, len(ls))
	for _, l := range ls {
		out = append(out, toSpaceResp(l))
	}
	return out
}

type bookingResp struct {
	ID              uint64              `json:"id"`
	SpaceID         uint64              `json:"spaceId"`
	SpaceTitle      string              `json:"spaceTitle"`
	UserID          uint64              `json:"userId"`
	OwnerID         uint64              `json:"ownerId"`
	StartDateTime   time.Time           `json:"startDateTime"`
	EndDateTime     time.Time           `json:"endDateTime"`
	Status          model.BookingStatus `json:"status"`
	PaymentStatus   model.PaymentStatus `json:"paymentStatus"`
	PaymentRef      string              `json:"paymentRef,omitempty"`
	PaidAt          *time.Time          `json:"paidAt,omitempty"`
	TotalAmount     string              `json:"totalAmount"`
	PlatformFee     string              `json:"platformFee"`
	OwnerAmount     string              `json:"ownerAmount"`
	SpecialRequests string              `json:"specialRequests"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func toBookingResp(b model.Booking) bookingResp {
	return bookingResp{
		ID:              b.ID,
		SpaceID:         b.SpaceID,
		SpaceTitle:      b.SpaceTitle,
		UserID:          b.UserID,
		OwnerID:         b.SpaceOwnerID,
		StartDateTime:   b.StartDateTime.UTC(),
		EndDateTime:     b.EndDateTime.UTC(),
		Status:          b.Status,
		PaymentStatus:   b.PaymentStatus,
		PaymentRef:      b.PaymentRef,
		PaidAt:          b.PaidAt,
		TotalAmount:     money(b.TotalAmount),
		PlatformFee:     money(b.PlatformFee),
		OwnerAmount:     money(b.OwnerAmount),
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toBookingList(bs []model.Booking) []bookingResp {
	out := make([]bookingResp, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingResp(b))
	}
	return out
}

type pricingResp struct {
	DurationHours int64   `json:"durationHours"`
	Days          int64   `json:"days,omitempty"`
	TotalAmount   string  `json:"totalAmount"`
	PlatformFee   string  `json:"platformFee"`
	OwnerAmount   string  `json:"ownerAmount"`
	PricePerHour  string  `json:"pricePerHour"`
	PricePerDay   *string `json:"pricePerDay"`
}

func toPricingResp(p availability.Pricing) *pricingResp {
	return &pricingResp{
		DurationHours: p.DurationHours,
		Days:          p.Days,
		TotalAmount:   money(p.TotalAmount),
		PlatformFee:   money(p.PlatformFee),
		OwnerAmount:   money(p.OwnerAmount),
		PricePerHour:  money(p.PricePerHour),
		PricePerDay:   nullMoney(p.PricePerDay),
	}
}

type conflictResp struct {
	Kind          availability.OccupantKind `json:"kind"`
	ID            uint64                    `json:"id"`
	StartDateTime time.Time                 `json:"startDateTime"`
	EndDateTime   time.Time                 `json:"endDateTime"`
}

func conflictOf(o availability.Occupant) conflictResp {
	return conflictResp{Kind: o.Kind, ID: o.Ref, StartDateTime: o.Interval.Start.UTC(), EndDateTime: o.Interval.End.UTC()}
}

// verdictResp is the check-availability answer.
type verdictResp struct {
	Available bool                `json:"available"`
	Reason    availability.Reason `json:"reason,omitempty"`
	Message   string              `json:"message,omitempty"`
	Conflict  *conflictResp       `json:"conflict,omitempty"`
	Pricing   *pricingResp        `json:"pricing,omitempty"`
}

func toVerdict(r availability.Result) verdictResp {
	v := verdictResp{Available: r.Available, Reason: r.Reason}
	if r.Available && r.Pricing != nil {
		v.Pricing = toPricingResp(*r.Pricing)
		return v
	}
	switch r.Reason {
	case availability.ReasonSpaceInactive:
		v.Message = "space is not accepting bookings"
	case availability.ReasonConflictingBooking:
		v.Message = "another booking holds this range"
	case availability.ReasonBlocked:
		v.Message = "the host blocked this range"
	}
	if r.Conflict != nil {
		c := conflictOf(*r.Conflict)
		v.Conflict = &c
	}
	return v
}

type windowResp struct {
	ID        uint64    `json:"id"`
	SpaceID   uint64    `json:"spaceId"`
	Date      string    `json:"date"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	IsBlocked bool      `json:"isBlocked"`
}

func toWindowResp(w model.BlockedWindow) windowResp {
	return windowResp{
		ID:        w.ID,
		SpaceID:   w.SpaceID,
		Date:      w.Date.Format(time.DateOnly),
		StartTime: w.StartTime.UTC(),
		EndTime:   w.EndTime.UTC(),
		IsBlocked: w.IsBlocked,
	}
}

type reviewResp struct {
	ID         uint64           `json:"id"`
	BookingID  uint64           `json:"bookingId"`
	SpaceID    uint64           `json:"spaceId"`
	AuthorID   uint64           `json:"authorId"`
	AuthorName string           `json:"authorName,omitempty"`
	TargetID   uint64           `json:"targetId"`
	Rating     int              `json:"rating"`
	Comment    string           `json:"comment"`
	Type       model.ReviewType `json:"type"`
	CreatedAt  time.Time        `json:"createdAt"`
}

func toReviewResp(r model.Review) reviewResp {
	return reviewResp{
		ID: r.ID, BookingID: r.BookingID, SpaceID: r.SpaceID, AuthorID: r.AuthorID, AuthorName: r.AuthorName,
		TargetID: r.TargetID, Rating: r.Rating, Comment: r.Comment, Type: r.Type, CreatedAt: r.CreatedAt,
	}
}

func toReviewList(rs []model.Review) []reviewResp {
	out := make([]reviewResp, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReviewResp(r))
	}
	return out
}
