package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/parking-rental/internal/model"
)

// SpaceRepo manages persistence for parking spaces.
type SpaceRepo struct {
	db *sql.DB
}

func NewSpaceRepo(db *sql.DB) *SpaceRepo { return &SpaceRepo{db: db} }

// DB exposes the underlying handle for callers that span repositories.
func (r *SpaceRepo) DB() *sql.DB { return r.db }

// SpaceListing is a space plus the aggregates shown in listings.
// DistanceKm is set only by geo searches.
type SpaceListing struct {
	model.Space
	Stats      model.SpaceStats
	DistanceKm *float64
}

const spaceColumns = `s.id, s.owner_id, s.title, s.description, s.address, s.latitude, s.longitude,
	s.price_per_hour, s.price_per_day, s.space_type, s.vehicle_types, s.amenities,
	s.instructions, s.auto_approve, s.is_active, s.created_at, s.updated_at`

// statsColumns must follow spaceColumns; the rating is rounded to one decimal.
const statsColumns = `,
	COALESCE((SELECT ROUND(AVG(r.rating), 1) FROM reviews r WHERE r.space_id = s.id AND r.type = 'SPACE_REVIEW'), 0),
	(SELECT COUNT(*) FROM reviews r WHERE r.space_id = s.id AND r.type = 'SPACE_REVIEW'),
	(SELECT COUNT(*) FROM bookings b WHERE b.space_id = s.id)`

func scanSpace(row scanner, extra ...any) (*model.Space, error) {
	var (
		s        model.Space
		vehicles []byte
		amenity  []byte
	)
	dest := []any{&s.ID, &s.OwnerID, &s.Title, &s.Description, &s.Address, &s.Latitude, &s.Longitude,
		&s.PricePerHour, &s.PricePerDay, &s.SpaceType, &vehicles, &amenity,
		&s.Instructions, &s.AutoApprove, &s.IsActive, &s.CreatedAt, &s.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(vehicles, &s.VehicleTypes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(amenity, &s.Amenities); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanListing(row scanner) (SpaceListing, error) {
	var st model.SpaceStats
	s, err := scanSpace(row, &st.AverageRating, &st.ReviewCount, &st.BookingCount)
	if err != nil {
		return SpaceListing{}, err
	}
	return SpaceListing{Space: *s, Stats: st}, nil
}

// jsonList encodes an enum slice for a JSON column, never as null.
func jsonList[T ~string](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

// Create inserts a space and fills in ID and timestamps.
func (r *SpaceRepo) Create(ctx context.Context, s *model.Space) error {
	vehicles, err := jsonList(s.VehicleTypes)
	if err != nil {
		return err
	}
	amenities, err := jsonList(s.Amenities)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO spaces
		(owner_id, title, description, address, latitude, longitude, price_per_hour, price_per_day,
		 space_type, vehicle_types, amenities, instructions, auto_approve, is_active)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.OwnerID, s.Title, s.Description, s.Address, s.Latitude, s.Longitude, s.PricePerHour, s.PricePerDay,
		s.SpaceType, vehicles, amenities, s.Instructions, s.AutoApprove, s.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return r.db.QueryRowContext(ctx, "SELECT created_at, updated_at FROM spaces WHERE id = ?", s.ID).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns ErrSpaceNotFound when no row matches.
func (r *SpaceRepo) GetByID(ctx context.Context, id uint64) (*model.Space, error) {
	s, err := scanSpace(r.db.QueryRowContext(ctx, "SELECT "+spaceColumns+" FROM spaces s WHERE s.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpaceNotFound
	}
	return s, err
}

// LockTx reads the space row with FOR UPDATE.  Every writer that inserts a
// booking for the space takes this lock first, which serializes them.
func (r *SpaceRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Space, error) {
	s, err := scanSpace(tx.QueryRowContext(ctx, "SELECT "+spaceColumns+" FROM spaces s WHERE s.id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpaceNotFound
	}
	return s, err
}

// GetListing returns the space with its rating and counts.
func (r *SpaceRepo) GetListing(ctx context.Context, id uint64) (SpaceListing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx,
		"SELECT "+spaceColumns+statsColumns+" FROM spaces s WHERE s.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return SpaceListing{}, ErrSpaceNotFound
	}
	return l, err
}

// Update overwrites the editable columns of a space owned by ownerID.
func (r *SpaceRepo) Update(ctx context.Context, ownerID uint64, s *model.Space) error {
	current, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	if current.OwnerID != ownerID {
		return ErrForbidden
	}
	vehicles, err := jsonList(s.VehicleTypes)
	if err != nil {
		return err
	}
	amenities, err := jsonList(s.Amenities)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE spaces SET
		title = ?, description = ?, address = ?, latitude = ?, longitude = ?, price_per_hour = ?, price_per_day = ?,
		space_type = ?, vehicle_types = ?, amenities = ?, instructions = ?, auto_approve = ?, is_active = ?
		WHERE id = ? AND owner_id = ?`,
		s.Title, s.Description, s.Address, s.Latitude, s.Longitude, s.PricePerHour, s.PricePerDay,
		s.SpaceType, vehicles, amenities, s.Instructions, s.AutoApprove, s.IsActive, s.ID, ownerID)
	if err != nil {
		return err
	}
	s.OwnerID = ownerID
	s.CreatedAt = current.CreatedAt
	return nil
}

// Delete removes a space owned by ownerID.  Spaces that were ever booked
// are kept for the booking history and ErrConflict is returned; hosts can
// deactivate them instead.
func (r *SpaceRepo) Delete(ctx context.Context, ownerID, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var owner uint64
		err := tx.QueryRowContext(ctx, "SELECT owner_id FROM spaces WHERE id = ? FOR UPDATE", id).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSpaceNotFound
		}
		if err != nil {
			return err
		}
		if owner != ownerID {
			return ErrForbidden
		}
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE space_id = ?", id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM spaces WHERE id = ?", id)
		return err
	})
}

// SpaceFilter narrows List.  Nil pointers and empty strings mean "any".
type SpaceFilter struct {
	OwnerID     *uint64
	IsActive    *bool
	SpaceType   model.SpaceType
	VehicleType model.VehicleType
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
}

func (f SpaceFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != nil {
		conds = append(conds, "s.owner_id = ?")
		args = append(args, *f.OwnerID)
	}
	if f.IsActive != nil {
		conds = append(conds, "s.is_active = ?")
		args = append(args, *f.IsActive)
	}
	if f.SpaceType != "" {
		conds = append(conds, "s.space_type = ?")
		args = append(args, f.SpaceType)
	}
	if f.VehicleType != "" {
		conds = append(conds, "JSON_CONTAINS(s.vehicle_types, JSON_QUOTE(?))")
		args = append(args, f.VehicleType)
	}
	if f.MinPrice != nil {
		conds = append(conds, "s.price_per_hour >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "s.price_per_hour <= ?")
		args = append(args, *f.MaxPrice)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of spaces, newest first, and the total match count.
func (r *SpaceRepo) List(ctx context.Context, f SpaceFilter, p Page) ([]SpaceListing, int, error) {
	where, args := f.where()
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM spaces s"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := "SELECT " + spaceColumns + statsColumns + " FROM spaces s" + where +
		" ORDER BY s.created_at DESC, s.id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]SpaceListing, 0, p.Limit)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// ListByOwner returns every space of a host, newest first.
func (r *SpaceRepo) ListByOwner(ctx context.Context, ownerID uint64, limit int) ([]SpaceListing, error) {
	q := "SELECT " + spaceColumns + statsColumns + " FROM spaces s WHERE s.owner_id = ? ORDER BY s.created_at DESC, s.id DESC"
	args := []any{ownerID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SpaceListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
