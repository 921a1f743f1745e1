package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNoReply indicates no confirmation was received for a request.
	// This happens when a confirmation arrives for a later request, and
	// all earlier requests fail with this error.
	ErrNoReply = errors.New("no reply")
	// ErrPayloadTooLarge indicates the payload exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrClosed indicates the connection is closed.
	ErrClosed = errors.New("link closed")
)

// FrameErrorKind classifies receive errors.
type FrameErrorKind int

// Receive errors.
const (
	FrameErrCRC FrameErrorKind = iota
	FrameErrEscape
	FrameErrTooShort
	FrameErrLength
	FrameErrOverflow
)

var frameErrNames = []string{"crc", "escape", "too short", "length", "overflow"}

func (k FrameErrorKind) String() string {
	if int(k) < len(frameErrNames) {
		return frameErrNames[k]
	}
	return "unknown"
}

// FrameError reports a frame dropped by the receiver.
type FrameError struct {
	Kind FrameErrorKind
	// Len is the number of bytes received for the frame.
	Len int
}

// Error implements error.
func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %s error after %d bytes", e.Kind, e.Len)
}
