package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/parking-rental/internal/model"
)

// WindowRepo manages host-declared availability windows.
type WindowRepo struct {
	db *sql.DB
}

func NewWindowRepo(db *sql.DB) *WindowRepo { return &WindowRepo{db: db} }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const windowColumns = "id, space_id, date, start_time, end_time, is_blocked, created_at, updated_at"

func scanWindow(row scanner) (model.BlockedWindow, error) {
	var w model.BlockedWindow
	err := row.Scan(&w.ID, &w.SpaceID, &w.Date, &w.StartTime, &w.EndTime, &w.IsBlocked, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func queryWindows(ctx context.Context, q querier, query string, args ...any) ([]model.BlockedWindow, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BlockedWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// blockingWindows returns isBlocked windows of the space that intersect
// [from, to).
func blockingWindows(ctx context.Context, q querier, spaceID uint64, from, to time.Time) ([]model.BlockedWindow, error) {
	return queryWindows(ctx, q,
		"SELECT "+windowColumns+" FROM availability_windows WHERE space_id = ? AND is_blocked = 1 AND start_time < ? AND end_time > ? ORDER BY start_time",
		spaceID, to, from)
}

// ListBySpace returns the windows of a space whose date lies in [from, to]
// (both bounds optional), ordered by date.
func (r *WindowRepo) ListBySpace(ctx context.Context, spaceID uint64, from, to *time.Time) ([]model.BlockedWindow, error) {
	q := "SELECT " + windowColumns + " FROM availability_windows WHERE space_id = ?"
	args := []any{spaceID}
	if from != nil {
		q += " AND date >= ?"
		args = append(args, from.Format(time.DateOnly))
	}
	if to != nil {
		q += " AND date <= ?"
		args = append(args, to.Format(time.DateOnly))
	}
	q += " ORDER BY date, start_time"
	return queryWindows(ctx, r.db, q, args...)
}

// BlockingInRange is the read-only variant used by previews and listings.
func (r *WindowRepo) BlockingInRange(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.BlockedWindow, error) {
	return blockingWindows(ctx, r.db, spaceID, from, to)
}

// checkOwnerTx locks the space row and verifies its owner.
func checkOwnerTx(ctx context.Context, tx *sql.Tx, spaceID, ownerID uint64) error {
	var owner uint64
	err := tx.QueryRowContext(ctx, "SELECT owner_id FROM spaces WHERE id = ? FOR UPDATE", spaceID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSpaceNotFound
	}
	if err != nil {
		return err
	}
	if owner != ownerID {
		return ErrForbidden
	}
	return nil
}

// overlapsOtherTx reports whether another window of the space intersects
// [start, end).  exclude skips the window being edited.
func overlapsOtherTx(ctx context.Context, tx *sql.Tx, spaceID, exclude uint64, start, end time.Time) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM availability_windows WHERE space_id = ? AND id <> ? AND start_time < ? AND end_time > ?",
		spaceID, exclude, end, start).Scan(&n)
	return n > 0, err
}

// Create inserts a window for a space owned by ownerID.  Windows of one
// space never overlap each other; ErrConflict is returned otherwise.
func (r *WindowRepo) Create(ctx context.Context, ownerID uint64, w *model.BlockedWindow) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := checkOwnerTx(ctx, tx, w.SpaceID, ownerID); err != nil {
			return err
		}
		clash, err := overlapsOtherTx(ctx, tx, w.SpaceID, 0, w.StartTime, w.EndTime)
		if err != nil {
			return err
		}
		if clash {
			return ErrConflict
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO availability_windows (space_id, date, start_time, end_time, is_blocked) VALUES (?,?,?,?,?)",
			w.SpaceID, w.Date.Format(time.DateOnly), w.StartTime, w.EndTime, w.IsBlocked)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		w.ID = uint64(id)
		return tx.QueryRowContext(ctx, "SELECT created_at, updated_at FROM availability_windows WHERE id = ?", w.ID).
			Scan(&w.CreatedAt, &w.UpdatedAt)
	})
}

// Update replaces the times and flag of an existing window.
func (r *WindowRepo) Update(ctx context.Context, ownerID uint64, w *model.BlockedWindow) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := checkOwnerTx(ctx, tx, w.SpaceID, ownerID); err != nil {
			return err
		}
		current, err := scanWindow(tx.QueryRowContext(ctx,
			"SELECT "+windowColumns+" FROM availability_windows WHERE id = ? AND space_id = ?", w.ID, w.SpaceID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWindowNotFound
		}
		if err != nil {
			return err
		}
		clash, err := overlapsOtherTx(ctx, tx, w.SpaceID, w.ID, w.StartTime, w.EndTime)
		if err != nil {
			return err
		}
		if clash {
			return ErrConflict
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE availability_windows SET date = ?, start_time = ?, end_time = ?, is_blocked = ? WHERE id = ?",
			w.Date.Format(time.DateOnly), w.StartTime, w.EndTime, w.IsBlocked, w.ID); err != nil {
			return err
		}
		w.CreatedAt = current.CreatedAt
		return nil
	})
}

// Delete removes one window of a space owned by ownerID.
func (r *WindowRepo) Delete(ctx context.Context, ownerID, spaceID, windowID uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := checkOwnerTx(ctx, tx, spaceID, ownerID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM availability_windows WHERE id = ? AND space_id = ?", windowID, spaceID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrWindowNotFound
		}
		return nil
	})
}
