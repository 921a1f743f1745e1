package area

import "errors"

var (
	// ErrInvalidArea indicates the area id is not in the table.
	ErrInvalidArea = errors.New("invalid area")
	// ErrNoHeader indicates the area does not carry a header.
	ErrNoHeader = errors.New("area has no header")
	// ErrTooManyAreas indicates the table exceeds MaxAreas.
	ErrTooManyAreas = errors.New("too many areas")
)
