package link

import (
	"github.com/robotalks/meshota/pkg/scratchpad"
)

// SLIP special bytes.
const (
	slipEND    byte = 0xc0
	slipESC    byte = 0xdb
	slipESCEND byte = 0xdc
	slipESCESC byte = 0xdd
)

const crcSize = 2

// maxEncoded bounds a decoded frame including its CRC.
const maxEncoded = HeaderSize + MaxPayload + crcSize

// Encode SLIP encodes data with its CRC trailer, framed by END bytes.
func Encode(data []byte) []byte {
	crc := scratchpad.CRC16(scratchpad.CRCInit, data)
	out := make([]byte, 0, len(data)+len(data)/8+6)
	out = append(out, slipEND)
	put := func(b byte) {
		switch b {
		case slipEND:
			out = append(out, slipESC, slipESCEND)
		case slipESC:
			out = append(out, slipESC, slipESCESC)
		default:
			out = append(out, b)
		}
	}
	for _, b := range data {
		put(b)
	}
	put(byte(crc))
	put(byte(crc >> 8))
	return append(out, slipEND)
}

// Decoder decodes a SLIP byte stream.
type Decoder struct {
	buf     []byte
	escaped bool
	dropped bool
}

// DecodeResult is the result after one decoding step.
type DecodeResult struct {
	// Data is a complete frame with the CRC removed.
	Data []byte
	// Err is a *FrameError when a frame was dropped.
	Err error
}

// Reset discards any partial frame.
func (d *Decoder) Reset() {
	d.buf, d.escaped, d.dropped = d.buf[:0], false, false
}

// Decode consumes one byte.
func (d *Decoder) Decode(b byte) (r DecodeResult) {
	if d.escaped {
		d.escaped = false
		switch b {
		case slipESCEND:
			return d.put(slipEND)
		case slipESCESC:
			return d.put(slipESC)
		}
		return d.drop(FrameErrEscape)
	}
	switch b {
	case slipEND:
		return d.complete()
	case slipESC:
		d.escaped = true
		return
	}
	return d.put(b)
}

func (d *Decoder) put(b byte) (r DecodeResult) {
	if d.dropped {
		return
	}
	if len(d.buf) >= maxEncoded {
		return d.drop(FrameErrOverflow)
	}
	d.buf = append(d.buf, b)
	return
}

// drop discards the frame until the next END.
func (d *Decoder) drop(kind FrameErrorKind) (r DecodeResult) {
	if d.dropped {
		return
	}
	r.Err = &FrameError{Kind: kind, Len: len(d.buf)}
	d.buf, d.dropped = d.buf[:0], true
	return
}

func (d *Decoder) complete() (r DecodeResult) {
	// Repeated END bytes are idle line.
	if d.dropped || len(d.buf) == 0 {
		d.Reset()
		return
	}
	defer d.Reset()
	if len(d.buf) <= crcSize {
		r.Err = &FrameError{Kind: FrameErrTooShort, Len: len(d.buf)}
		return
	}
	n := len(d.buf) - crcSize
	crc := uint16(d.buf[n]) | uint16(d.buf[n+1])<<8
	if scratchpad.CRC16(scratchpad.CRCInit, d.buf[:n]) != crc {
		r.Err = &FrameError{Kind: FrameErrCRC, Len: len(d.buf)}
		return
	}
	r.Data = append([]byte(nil), d.buf[:n]...)
	return
}
