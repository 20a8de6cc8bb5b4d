package services

import "errors"

// Sentinel errors mapped by handlers onto the HTTP error taxonomy.
var (
	// ErrPermission is returned when a caller acts on a resource they do
	// not own. Handlers must not disclose the resource when mapping it.
	ErrPermission = errors.New("permission denied")

	// ErrRoomClosed is returned when a vote targets a closed room.
	ErrRoomClosed = errors.New("room is closed")

	// ErrAlreadyVoted is the terminal already-voted outcome. It is a
	// normal state, not a failure.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrQuotaExceeded is returned when a user at the room quota tries to
	// create another room.
	ErrQuotaExceeded = errors.New("room quota exceeded")
)

// ValidationError is a field-scoped, non-fatal input error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func validationErr(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
