// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios: a
// missing row (the ErrXNotFound values), a caller acting on a resource
// owned by someone else (ErrForbidden), and a state that does not allow
// the requested transition (ErrConflict).
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of the
// current state: reserving a slot that is not available, creating a second
// slot at the same start time, registering a venue twice, or deciding a
// booking that is no longer pending.  Handlers translate this into 409.
var ErrConflict = errors.New("conflict")

var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrVenueNotFound   = errors.New("venue not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrCompanyNotFound = errors.New("company not found")
)

// isDuplicate reports whether err is a MySQL unique-key violation (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
