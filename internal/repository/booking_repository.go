package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/parking-rental/internal/model"
)

// BookingRepo manages bookings and their settlement.
type BookingRepo struct {
	db     *sql.DB
	spaces *SpaceRepo
}

func NewBookingRepo(db *sql.DB, spaces *SpaceRepo) *BookingRepo {
	return &BookingRepo{db: db, spaces: spaces}
}

func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `b.id, b.space_id, b.user_id, b.start_at, b.end_at, b.status,
	b.total_amount, b.platform_fee, b.owner_amount, b.payment_status, b.payment_ref, b.paid_at,
	b.special_requests, b.created_at, b.updated_at, s.owner_id, s.title`

const bookingFrom = " FROM bookings b JOIN spaces s ON s.id = b.space_id"

func scanBooking(row scanner) (model.Booking, error) {
	var (
		b      model.Booking
		ref    sql.NullString
		paidAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.SpaceID, &b.UserID, &b.StartDateTime, &b.EndDateTime, &b.Status,
		&b.TotalAmount, &b.PlatformFee, &b.OwnerAmount, &b.PaymentStatus, &ref, &paidAt,
		&b.SpecialRequests, &b.CreatedAt, &b.UpdatedAt, &b.SpaceOwnerID, &b.SpaceTitle)
	if err != nil {
		return b, err
	}
	b.PaymentRef = ref.String
	if paidAt.Valid {
		t := paidAt.Time
		b.PaidAt = &t
	}
	return b, nil
}

func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// activeBookings returns PENDING and CONFIRMED bookings of the space that
// intersect [from, to).
func activeBookings(ctx context.Context, q querier, spaceID uint64, from, to time.Time) ([]model.Booking, error) {
	return queryBookings(ctx, q, "SELECT "+bookingColumns+bookingFrom+
		" WHERE b.space_id = ? AND b.status IN ('PENDING','CONFIRMED') AND b.start_at < ? AND b.end_at > ? ORDER BY b.start_at",
		spaceID, to, from)
}

// ActiveInRange is the read-only variant used by previews and listings.
func (r *BookingRepo) ActiveInRange(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.Booking, error) {
	return activeBookings(ctx, r.db, spaceID, from, to)
}

// NewBooking is what a renter asks for.
type NewBooking struct {
	SpaceID         uint64
	UserID          uint64
	Start           time.Time
	End             time.Time
	SpecialRequests string
}

// BookingDraft is what the in-transaction check decided to insert.
type BookingDraft struct {
	Status      model.BookingStatus
	TotalAmount decimal.Decimal
	PlatformFee decimal.Decimal
	OwnerAmount decimal.Decimal
}

// BookingCheck inspects the locked space and the occupants of the
// requested range and either returns the row to insert or an error that
// aborts the transaction.
type BookingCheck func(space *model.Space, bookings []model.Booking, windows []model.BlockedWindow) (BookingDraft, error)

// CreateChecked inserts a booking after check approves it.  The space row
// is locked FOR UPDATE before the occupants are read, so two requests for
// the same space run the check one after the other and never both insert
// overlapping bookings.
func (r *BookingRepo) CreateChecked(ctx context.Context, in NewBooking, check BookingCheck) (*model.Booking, error) {
	var created *model.Booking
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		space, err := r.spaces.LockTx(ctx, tx, in.SpaceID)
		if err != nil {
			return err
		}
		bookings, err := activeBookings(ctx, tx, in.SpaceID, in.Start, in.End)
		if err != nil {
			return err
		}
		windows, err := blockingWindows(ctx, tx, in.SpaceID, in.Start, in.End)
		if err != nil {
			return err
		}
		draft, err := check(space, bookings, windows)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO bookings
			(space_id, user_id, start_at, end_at, status, total_amount, platform_fee, owner_amount, special_requests)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			in.SpaceID, in.UserID, in.Start, in.End, draft.Status,
			draft.TotalAmount.StringFixed(2), draft.PlatformFee.StringFixed(2), draft.OwnerAmount.StringFixed(2),
			in.SpecialRequests)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		b, err := scanBooking(tx.QueryRowContext(ctx, "SELECT "+bookingColumns+bookingFrom+" WHERE b.id = ?", id))
		if err != nil {
			return err
		}
		created = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID returns ErrBookingNotFound when no row matches.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+bookingFrom+" WHERE b.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BookingFilter selects bookings made by a renter (UserID) or received on
// a host's spaces (OwnerID).
type BookingFilter struct {
	UserID  *uint64
	OwnerID *uint64
	Status  model.BookingStatus
}

func (f BookingFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != nil {
		conds = append(conds, "b.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.OwnerID != nil {
		conds = append(conds, "s.owner_id = ?")
		args = append(args, *f.OwnerID)
	}
	if f.Status != "" {
		conds = append(conds, "b.status = ?")
		args = append(args, f.Status)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of bookings, newest first, with the total count.
func (r *BookingRepo) List(ctx context.Context, f BookingFilter, p Page) ([]model.Booking, int, error) {
	where, args := f.where()
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+bookingFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	out, err := queryBookings(ctx, r.db,
		"SELECT "+bookingColumns+bookingFrom+where+" ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	return out, total, err
}

// UpdateStatus moves a booking from one status to another.  The WHERE
// clause repeats the expected current status; ErrStaleStatus means another
// writer got there first.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.BookingStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE bookings SET status = ? WHERE id = ? AND status = ?", to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

// DeletePending removes a renter's booking while it is still PENDING.
func (r *BookingRepo) DeletePending(ctx context.Context, id, userID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM bookings WHERE id = ? AND user_id = ? AND status = 'PENDING'", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

// SettlementApply mutates the locked booking in place.  Returning false
// leaves the row untouched.
type SettlementApply func(b *model.Booking) (bool, error)

// ApplyPaymentEvent records eventID in processed_events and applies the
// event to the booking in the same transaction.  A second delivery of the
// same event id returns (nil, false, nil) without touching the booking.
func (r *BookingRepo) ApplyPaymentEvent(ctx context.Context, eventID, eventType string, bookingID uint64, apply SettlementApply) (*model.Booking, bool, error) {
	var (
		out     *model.Booking
		applied bool
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO processed_events (event_id, event_type) VALUES (?, ?)", eventID, eventType); err != nil {
			if isDuplicate(err) {
				return nil
			}
			return err
		}
		b, err := scanBooking(tx.QueryRowContext(ctx,
			"SELECT "+bookingColumns+bookingFrom+" WHERE b.id = ? FOR UPDATE", bookingID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		if err != nil {
			return err
		}
		changed, err := apply(&b)
		if err != nil {
			return err
		}
		if changed {
			var ref any
			if b.PaymentRef != "" {
				ref = b.PaymentRef
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE bookings SET status = ?, payment_status = ?, payment_ref = ?, paid_at = ? WHERE id = ?",
				b.Status, b.PaymentStatus, ref, b.PaidAt, b.ID); err != nil {
				return err
			}
		}
		out = &b
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, applied, nil
}
