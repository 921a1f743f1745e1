package link

import (
	"fmt"
	"time"
)

// HeaderSize is the size of the frame header.
const HeaderSize = 3

// MaxPayload is the largest payload of a frame.
const MaxPayload = 255

// ConfirmFlag is set in the function code of confirmations and
// indications.
const ConfirmFlag = 0x80

// FrameID identifies a request and its confirmation.
type FrameID byte

// NewFrameID creates a random frame id.
func NewFrameID() FrameID {
	return FrameID(byte(time.Now().UnixNano())).Next()
}

// Next calculates the next frame id, skipping 0.
func (id FrameID) Next() FrameID {
	n := byte(id) + 1
	if n == 0 {
		n = 1
	}
	return FrameID(n)
}

// IsValid checks if it's a valid frame id.
func (id FrameID) IsValid() bool {
	return id != 0
}

// Frame is an API frame.
type Frame struct {
	Func    byte
	ID      FrameID
	Payload []byte
}

// IsConfirm tells whether f is a confirmation or an indication.
func (f *Frame) IsConfirm() bool {
	return f.Func&ConfirmFlag != 0
}

// ConfirmOf tells whether f confirms req.
func (f *Frame) ConfirmOf(req *Frame) bool {
	return f.Func == req.Func|ConfirmFlag && f.ID == req.ID
}

// Bytes returns the header and payload.
func (f *Frame) Bytes() ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	b := make([]byte, HeaderSize+len(f.Payload))
	b[0], b[1], b[2] = f.Func, byte(f.ID), byte(len(f.Payload))
	copy(b[HeaderSize:], f.Payload)
	return b, nil
}

func (f *Frame) String() string {
	return fmt.Sprintf("func=0x%02x id=%d len=%d", f.Func, f.ID, len(f.Payload))
}

// DecodeFrame parses header and payload.
func DecodeFrame(b []byte) (*Frame, error) {
	if len(b) < HeaderSize {
		return nil, &FrameError{Kind: FrameErrTooShort, Len: len(b)}
	}
	if int(b[2]) != len(b)-HeaderSize {
		return nil, &FrameError{Kind: FrameErrLength, Len: len(b)}
	}
	f := &Frame{Func: b[0], ID: FrameID(b[1])}
	if b[2] > 0 {
		f.Payload = append([]byte(nil), b[HeaderSize:]...)
	}
	return f, nil
}
