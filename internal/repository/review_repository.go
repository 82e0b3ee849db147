package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/parking-rental/internal/model"
)

type ReviewRepo struct{ db *sql.DB }

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

const reviewSelect = `SELECT r.id, r.booking_id, r.space_id, r.author_id, r.target_id, r.rating, r.comment, r.type,
	r.created_at, u.name FROM reviews r JOIN users u ON u.id = r.author_id`

func scanReview(row scanner) (model.Review, error) {
	var rv model.Review
	err := row.Scan(&rv.ID, &rv.BookingID, &rv.SpaceID, &rv.AuthorID, &rv.TargetID, &rv.Rating, &rv.Comment,
		&rv.Type, &rv.CreatedAt, &rv.AuthorName)
	return rv, err
}

func (r *ReviewRepo) query(ctx context.Context, q string, args ...any) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// Create inserts a review; a second review of the same type on one booking
// yields ErrReviewExists.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO reviews (booking_id, space_id, author_id, target_id, rating, comment, type) VALUES (?,?,?,?,?,?,?)",
		rv.BookingID, rv.SpaceID, rv.AuthorID, rv.TargetID, rv.Rating, rv.Comment, rv.Type)
	if err != nil {
		if isDuplicate(err) {
			return ErrReviewExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanReview(r.db.QueryRowContext(ctx, reviewSelect+" WHERE r.id = ?", id))
	if err != nil {
		return err
	}
	*rv = created
	return nil
}

// ListByBooking returns both reviews of a booking when they exist.
func (r *ReviewRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.Review, error) {
	return r.query(ctx, reviewSelect+" WHERE r.booking_id = ? ORDER BY r.type", bookingID)
}

type ReviewFilter struct {
	SpaceID  *uint64
	TargetID *uint64
	Type     model.ReviewType
}

// List returns one page of reviews, newest first, with the total count.
func (r *ReviewRepo) List(ctx context.Context, f ReviewFilter, p Page) ([]model.Review, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.SpaceID != nil {
		conds = append(conds, "r.space_id = ?")
		args = append(args, *f.SpaceID)
	}
	if f.TargetID != nil {
		conds = append(conds, "r.target_id = ?")
		args = append(args, *f.TargetID)
	}
	if f.Type != "" {
		conds = append(conds, "r.type = ?")
		args = append(args, f.Type)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews r"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	out, err := r.query(ctx, reviewSelect+where+" ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	return out, total, err
}
