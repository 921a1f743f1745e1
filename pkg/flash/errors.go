package flash

import "errors"

var (
	// ErrBusy indicates another operation is in progress on the medium.
	// The new operation is rejected, not queued.
	ErrBusy = errors.New("flash busy")
	// ErrNoDriver indicates no driver is bound to the medium.
	ErrNoDriver = errors.New("no flash driver")
	// ErrParam indicates an invalid address, length or alignment.
	ErrParam = errors.New("invalid flash parameters")
	// ErrIO indicates the medium failed to complete the operation.
	ErrIO = errors.New("flash I/O error")
)
