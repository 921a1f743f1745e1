package scratchpad

import (
	"bytes"
	"encoding/binary"
	"strconv"
)

// Layout of a scratchpad: a tag, a header, then Length payload bytes.
const (
	TagSize    = 16
	HeaderSize = 16
	PrefixSize = TagSize + HeaderSize
	// MinLength is the smallest scratchpad accepted by a transfer.
	MinLength = 96
	// Alignment applies to transfer lengths and block offsets.
	Alignment = 4
)

// Tag marks the start of a scratchpad.
var Tag = []byte{'S', 'C', 'R', '1', 0x9a, 0x93, 0x30, 0x82, 0xd9, 0xeb, 0x0a, 0xfc, 0x31, 0x21, 0xe3, 0x37}

// Seq is the sequence number of a scratchpad.
type Seq uint8

const (
	// SeqNone marks a node not taking part in updates.
	SeqNone Seq = 0
	// SeqAny accepts any sequence.
	SeqAny Seq = 255
)

// HeaderType is the type word of the header. Marking a scratchpad for
// processing clears bits, so it can be done without an erase.
type HeaderType uint32

// Header types.
const (
	TypeProcess HeaderType = 0
	TypePresent HeaderType = 1
)

// Header status words. Other values are error codes left by the
// bootloader.
const (
	StatusOK  uint32 = 0
	StatusNew uint32 = 0xffffffff
)

// Offsets of the header words within the scratchpad.
const (
	typeOffset   = TagSize + 8
	statusOffset = TagSize + 12
)

// Header follows the tag.
type Header struct {
	// Length of the payload, excluding tag and header.
	Length uint32
	// CRC of the payload.
	CRC    uint16
	Seq    Seq
	Pad    uint8
	Type   HeaderType
	Status uint32
}

// Bytes encodes the header.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:], h.Length)
	binary.LittleEndian.PutUint16(b[4:], h.CRC)
	b[6] = byte(h.Seq)
	b[7] = h.Pad
	binary.LittleEndian.PutUint32(b[8:], uint32(h.Type))
	binary.LittleEndian.PutUint32(b[12:], h.Status)
	return b
}

// DecodeHeader decodes a header from HeaderSize bytes.
func DecodeHeader(b []byte) Header {
	return Header{
		Length: binary.LittleEndian.Uint32(b[0:]),
		CRC:    binary.LittleEndian.Uint16(b[4:]),
		Seq:    Seq(b[6]),
		Pad:    b[7],
		Type:   HeaderType(binary.LittleEndian.Uint32(b[8:])),
		Status: binary.LittleEndian.Uint32(b[12:]),
	}
}

// Check validates the header against the size of the area.
func (h Header) Check(areaSize uint32) bool {
	if h.Type != TypePresent && h.Type != TypeProcess {
		return false
	}
	return h.Length > 0 && uint64(h.Length)+PrefixSize <= uint64(areaSize)
}

// Total is the number of bytes transferred for the scratchpad.
func (h Header) Total() uint32 {
	return h.Length + PrefixSize
}

// Prefix encodes tag and header.
func (h Header) Prefix() []byte {
	return append(append(make([]byte, 0, PrefixSize), Tag...), h.Bytes()...)
}

// Validity is derived from the contents of the scratchpad area.
type Validity uint8

// Validity values.
const (
	// Unknown is reported while a transfer is in progress.
	Unknown Validity = iota
	// Clear means the area is erased.
	Clear
	NoTag
	InvalidHeader
	InvalidCRC
	// Invalid means header and CRC are fine but the bootloader
	// failed to process the scratchpad.
	Invalid
	Valid
)

var validityNames = []string{"unknown", "clear", "no-tag", "invalid-header", "invalid-crc", "invalid", "valid"}

func (v Validity) String() string {
	if int(v) < len(validityNames) {
		return validityNames[v]
	}
	return "validity(" + strconv.Itoa(int(v)) + ")"
}

// Intact reports whether header and CRC are good.
func (v Validity) Intact() bool {
	return v == Valid || v == Invalid
}

// StoredType is the type of a stored scratchpad as reported in status.
type StoredType uint8

// Stored types.
const (
	StoredBlank StoredType = iota
	StoredPresent
	StoredProcess
)

func (t StoredType) String() string {
	switch t {
	case StoredBlank:
		return "blank"
	case StoredPresent:
		return "present"
	case StoredProcess:
		return "process"
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

// WriteResult is the outcome of a block write.
type WriteResult uint8

// Write results.
const (
	WriteOK WriteResult = iota
	WriteCompletedOK
	WriteCompletedError
	WriteNotOngoing
	WriteInvalidStart
	WriteInvalidNumBytes
	WriteInvalidHeader
	WriteInvalidNullBytes
	WriteFlashError
)

var writeResultNames = []string{
	"ok", "completed-ok", "completed-error", "not-ongoing", "invalid-start",
	"invalid-num-bytes", "invalid-header", "invalid-null-bytes", "flash-error",
}

func (r WriteResult) String() string {
	if int(r) < len(writeResultNames) {
		return writeResultNames[r]
	}
	return "result(" + strconv.Itoa(int(r)) + ")"
}

// classify checks the prefix read from flash.
func classify(prefix []byte, areaSize uint32) (Validity, Header) {
	if isErased(prefix[:TagSize]) {
		return Clear, Header{}
	}
	if !bytes.Equal(prefix[:TagSize], Tag) {
		return NoTag, Header{}
	}
	h := DecodeHeader(prefix[TagSize:])
	if !h.Check(areaSize) {
		return InvalidHeader, h
	}
	return Unknown, h
}

func isErased(b []byte) bool {
	for _, c := range b {
		if c != 0xff {
			return false
		}
	}
	return true
}
