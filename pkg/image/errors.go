package image

import "errors"

var (
	// ErrNoTag indicates the data does not start with the scratchpad tag.
	ErrNoTag = errors.New("scratchpad tag not found")
	// ErrHeader indicates an invalid scratchpad header.
	ErrHeader = errors.New("invalid scratchpad header")
	// ErrCRC indicates the payload does not match the header CRC.
	ErrCRC = errors.New("scratchpad CRC mismatch")
	// ErrEntry indicates a malformed file entry.
	ErrEntry = errors.New("invalid file entry")
	// ErrTooLarge indicates an input file exceeds MaxFileSize.
	ErrTooLarge = errors.New("file too large")
	// ErrEmpty indicates an input without data.
	ErrEmpty = errors.New("no data")
)
