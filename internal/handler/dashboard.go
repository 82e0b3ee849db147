package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-rental/internal/repository"
)

// StatsSource is implemented by *repository.StatsRepo.
type StatsSource interface {
	ForHost(ctx context.Context, ownerID uint64) (repository.HostStats, error)
}

type DashboardHandler struct {
	Source   StatsSource
	Bookings BookingWorkflow
	Spaces   SpaceStore
}

func NewDashboardHandler(stats StatsSource, b BookingWorkflow, s SpaceStore) *DashboardHandler {
	return &DashboardHandler{Source: stats, Bookings: b, Spaces: s}
}

const recentItems = 5

// Stats returns the host's headline numbers plus the latest bookings on
// their spaces and their newest spaces.
func (h *DashboardHandler) Stats(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	st, err := h.Source.ForHost(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	bookings, _, err := h.Bookings.List(ctx, uid, true, "", repository.Page{Page: 1, Limit: recentItems})
	if err != nil {
		return respondError(c, err)
	}
	spaces, err := h.Spaces.ListByOwner(ctx, uid, recentItems)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"stats": echo.Map{
			"totalSpaces":   st.TotalSpaces,
			"totalBookings": st.TotalBookings,
			"totalEarnings": money(st.TotalEarnings),
			"averageRating": st.AverageRating.StringFixed(1),
		},
		"recentBookings": toBookingList(bookings),
		"recentSpaces":   toSpaceList(spaces),
	})
}
