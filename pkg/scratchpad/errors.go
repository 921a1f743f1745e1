package scratchpad

import "errors"

var (
	// ErrSessionActive indicates a transfer is in progress.
	ErrSessionActive = errors.New("transfer in progress")
	// ErrBusy indicates another store operation is in progress.
	ErrBusy = errors.New("store busy")
	// ErrInvalidNumBytes indicates an unacceptable transfer length.
	ErrInvalidNumBytes = errors.New("invalid number of bytes")
	// ErrInvalidSeq indicates an unacceptable sequence number.
	ErrInvalidSeq = errors.New("invalid sequence")
	// ErrNoScratchpad indicates the area does not hold a scratchpad.
	ErrNoScratchpad = errors.New("no scratchpad")
	// ErrNotValid indicates the stored scratchpad is not valid.
	ErrNotValid = errors.New("scratchpad not valid")
	// ErrNoArea indicates no scratchpad area in the table.
	ErrNoArea = errors.New("no scratchpad area")
)
