package fcm

import "errors"

var (
	// ErrEmptyName is returned when a concept or connection name is blank.
	ErrEmptyName = errors.New("name must not be empty")

	// ErrDuplicateName is returned when a name is already taken in the map.
	ErrDuplicateName = errors.New("name already exists")

	// ErrNotFound is returned when a referenced concept or connection does
	// not exist in the map.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDelay is returned for negative connection delays.
	ErrInvalidDelay = errors.New("delay must not be negative")
)
