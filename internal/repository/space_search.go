package repository

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/parking-rental/internal/model"
)

// SpaceSearchQuery defines filters and pagination for the public search.
// Only active spaces are ever returned.
type SpaceSearchQuery struct {
	Text         string
	SpaceType    model.SpaceType
	VehicleTypes []model.VehicleType // any of
	Amenities    []model.Amenity     // any of
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	Near         *GeoPoint
	RadiusKm     float64
	Page         Page
}

type GeoPoint struct {
	Lat float64
	Lng float64
}

const earthRadiusKm = 6371.0

// HaversineKm is the great-circle distance between two points.
func HaversineKm(a, b GeoPoint) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// boundingBox returns the lat/lng ranges that contain every point within
// radiusKm of p.  It is a coarse prefilter for the SQL query.
func boundingBox(p GeoPoint, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusKm / earthRadiusKm * 180 / math.Pi
	minLat, maxLat = p.Lat-dLat, p.Lat+dLat
	cos := math.Cos(p.Lat * math.Pi / 180)
	if cos < 1e-6 || maxLat >= 90 || minLat <= -90 {
		return math.Max(minLat, -90), math.Min(maxLat, 90), -180, 180
	}
	dLng := dLat / cos
	return minLat, maxLat, p.Lng - dLng, p.Lng + dLng
}

func (q SpaceSearchQuery) where() (string, []any) {
	conds := []string{"s.is_active = 1"}
	args := []any{}
	if t := strings.TrimSpace(q.Text); t != "" {
		like := "%" + strings.ToLower(t) + "%"
		conds = append(conds, "(LOWER(s.title) LIKE ? OR LOWER(s.description) LIKE ? OR LOWER(s.address) LIKE ?)")
		args = append(args, like, like, like)
	}
	if q.SpaceType != "" {
		conds = append(conds, "s.space_type = ?")
		args = append(args, q.SpaceType)
	}
	if len(q.VehicleTypes) > 0 {
		vehicles, _ := jsonList(q.VehicleTypes)
		conds = append(conds, "JSON_OVERLAPS(s.vehicle_types, CAST(? AS JSON))")
		args = append(args, vehicles)
	}
	if len(q.Amenities) > 0 {
		amenities, _ := jsonList(q.Amenities)
		conds = append(conds, "JSON_OVERLAPS(s.amenities, CAST(? AS JSON))")
		args = append(args, amenities)
	}
	if q.MinPrice != nil {
		conds = append(conds, "s.price_per_hour >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		conds = append(conds, "s.price_per_hour <= ?")
		args = append(args, *q.MaxPrice)
	}
	if q.Near != nil && q.RadiusKm > 0 {
		minLat, maxLat, minLng, maxLng := boundingBox(*q.Near, q.RadiusKm)
		conds = append(conds, "s.latitude BETWEEN ? AND ?", "s.longitude BETWEEN ? AND ?")
		args = append(args, minLat, maxLat, minLng, maxLng)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Search returns active spaces matching q.  Without a location the page is
// cut in SQL, newest first.  With a location every candidate inside the
// bounding box is loaded, filtered by exact distance, sorted nearest first
// and paged in memory.
func (r *SpaceRepo) Search(ctx context.Context, q SpaceSearchQuery) ([]SpaceListing, int, error) {
	where, args := q.where()
	base := "SELECT " + spaceColumns + statsColumns + " FROM spaces s" + where

	if q.Near == nil || q.RadiusKm <= 0 {
		var total int
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM spaces s"+where, args...).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err := r.db.QueryContext(ctx, base+" ORDER BY s.created_at DESC, s.id DESC LIMIT ? OFFSET ?",
			append(args, q.Page.Limit, q.Page.Offset())...)
		if err != nil {
			return nil, 0, err
		}
		defer rows.Close()
		out := make([]SpaceListing, 0, q.Page.Limit)
		for rows.Next() {
			l, err := scanListing(rows)
			if err != nil {
				return nil, 0, err
			}
			if q.Near != nil {
				d := roundKm(HaversineKm(*q.Near, GeoPoint{l.Latitude, l.Longitude}))
				l.DistanceKm = &d
			}
			out = append(out, l)
		}
		return out, total, rows.Err()
	}

	rows, err := r.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var within []SpaceListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		d := HaversineKm(*q.Near, GeoPoint{l.Latitude, l.Longitude})
		if d > q.RadiusKm {
			continue
		}
		d = roundKm(d)
		l.DistanceKm = &d
		within = append(within, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	sort.SliceStable(within, func(i, j int) bool { return *within[i].DistanceKm < *within[j].DistanceKm })

	total := len(within)
	from := q.Page.Offset()
	if from > total {
		from = total
	}
	to := from + q.Page.Limit
	if to > total {
		to = total
	}
	return within[from:to], total, nil
}

// roundKm keeps two decimals, enough for display.
func roundKm(d float64) float64 { return math.Round(d*100) / 100 }
