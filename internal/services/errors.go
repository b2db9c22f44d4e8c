package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/rsvp/pkg/errors"
)

var (
	// ErrEventNotFound indicates the requested event does not exist.
	ErrEventNotFound = apperrors.New("EVENT_NOT_FOUND", "Event not found", http.StatusNotFound)
	// ErrRSVPNotFound indicates the requested RSVP does not exist for the event.
	ErrRSVPNotFound = apperrors.New("RSVP_NOT_FOUND", "RSVP not found", http.StatusNotFound)
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrPostNotFound indicates the requested post does not exist.
	ErrPostNotFound = apperrors.New("POST_NOT_FOUND", "Post not found", http.StatusNotFound)
	// ErrDuplicateRSVP rejects a second live RSVP for the same attendee.
	ErrDuplicateRSVP = apperrors.New("DUPLICATE_RSVP", "User has already RSVPed to this event", http.StatusConflict)
	// ErrEventClosed rejects RSVPs to archived or cancelled events from non-admins.
	ErrEventClosed = apperrors.New("EVENT_CLOSED", "Event is archived or cancelled", http.StatusForbidden)
	// ErrCannotCancel rejects cancellations by someone other than the attendee, its creator or an admin.
	ErrCannotCancel = apperrors.New("RSVP_CANCEL_FORBIDDEN", "Only the attendee, the person who added the RSVP or an admin can cancel it", http.StatusForbidden)
	// ErrConcurrentUpdate is returned when an event kept changing underneath every retry.
	ErrConcurrentUpdate = apperrors.New("CONCURRENT_UPDATE", "Event was modified concurrently, please retry", http.StatusConflict)
)

// errVersionConflict signals a lost compare-and-swap on events.version.
var errVersionConflict = errors.New("event version conflict")

// isTransientTxError reports deadlocks and serialization failures, which the
// database resolves by aborting one transaction that is safe to rerun.
func isTransientTxError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil {
		return myErr.Number == 1213
	}
	return false
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
