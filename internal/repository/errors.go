// Package repository holds the MySQL data access layer.  This file defines
// the sentinel errors shared by several repositories so that handlers and
// services can tell failure scenarios apart with errors.Is.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot proceed because of
// dependent or overlapping records, such as deleting a space that still has
// bookings.  Handlers translate it into 409.
var ErrConflict = errors.New("conflict")

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSpaceNotFound   = errors.New("space not found")
	ErrWindowNotFound  = errors.New("availability window not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrReviewNotFound  = errors.New("review not found")
)

// ErrReviewExists is returned when the booking already has a review of the
// requested type.
var ErrReviewExists = errors.New("review already exists")

// ErrStaleStatus means a conditional status update found the booking in a
// different state than the caller read.
var ErrStaleStatus = errors.New("booking status changed concurrently")

// isDuplicate reports whether err is a MySQL duplicate-key violation (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
