package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

// HostStats are the headline numbers of a host's dashboard.
type HostStats struct {
	TotalSpaces   int
	TotalBookings int             // CONFIRMED and COMPLETED bookings on own spaces
	TotalEarnings decimal.Decimal // sum of owner_amount over PAID bookings
	AverageRating decimal.Decimal // SPACE_REVIEW ratings received as host, one decimal
}

type StatsRepo struct{ db *sql.DB }

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// ForHost computes all aggregates in a single round trip.
func (r *StatsRepo) ForHost(ctx context.Context, ownerID uint64) (HostStats, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM spaces WHERE owner_id = ?),
		(SELECT COUNT(*) FROM bookings b JOIN spaces s ON s.id = b.space_id
			WHERE s.owner_id = ? AND b.status IN ('CONFIRMED','COMPLETED')),
		(SELECT COALESCE(SUM(b.owner_amount), 0) FROM bookings b JOIN spaces s ON s.id = b.space_id
			WHERE s.owner_id = ? AND b.payment_status = 'PAID'),
		(SELECT COALESCE(ROUND(AVG(rating), 1), 0) FROM reviews WHERE target_id = ? AND type = 'SPACE_REVIEW')`
	var st HostStats
	err := r.db.QueryRowContext(ctx, q, ownerID, ownerID, ownerID, ownerID).
		Scan(&st.TotalSpaces, &st.TotalBookings, &st.TotalEarnings, &st.AverageRating)
	return st, err
}
