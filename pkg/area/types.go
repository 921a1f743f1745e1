package area

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/robotalks/meshota/pkg/flash"
)

// Type is the purpose of an area.
type Type uint8

// Area types.
const (
	TypeBootloader Type = iota
	TypeStack
	TypeApplication
	TypePersistent
	TypeScratchpad
	TypeUser
)

var typeNames = []string{"bootloader", "stack", "application", "persistent", "scratchpad", "user"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

// ParseType parses the name of a type.
func ParseType(s string) (Type, error) {
	for n, name := range typeNames {
		if strings.EqualFold(s, name) {
			return Type(n), nil
		}
	}
	return 0, fmt.Errorf("unknown area type %q", s)
}

// ID identifies an area. It is stable across firmware versions.
type ID uint32

// UndefinedID never identifies an area.
const UndefinedID ID = 0xffffffff

func (id ID) String() string {
	return fmt.Sprintf("0x%08x", uint32(id))
}

// MaxAreas is the largest number of areas in a table.
const MaxAreas = 8

// Area describes one region of flash.
type Area struct {
	ID ID `yaml:"id"`
	// Type is the purpose of the area.
	Type Type `yaml:"type"`
	// Address is the start on the medium. It must be sector aligned.
	Address uint32 `yaml:"address"`
	// Size in bytes, a multiple of the sector size.
	Size uint32 `yaml:"size"`
	// External selects the external medium.
	External bool `yaml:"external"`
	// HasHeader reserves the last HeaderSlotSize bytes for a Header.
	HasHeader bool `yaml:"header"`
}

// End is the first address after the area.
func (a Area) End() uint32 {
	return a.Address + a.Size
}

// Overlaps checks whether both areas share bytes on the same medium.
func (a Area) Overlaps(o Area) bool {
	return a.External == o.External && a.Address < o.End() && o.Address < a.End()
}

// Info describes an area with the timing of its medium.
type Info struct {
	Area
	Timing flash.Timing
}

// Version is the major.minor.maint.devel quad of a firmware image.
type Version struct {
	Major uint8 `yaml:"major"`
	Minor uint8 `yaml:"minor"`
	Maint uint8 `yaml:"maint"`
	Devel uint8 `yaml:"devel"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Maint, v.Devel)
}

// ParseVersion parses "major.minor.maint.devel". Missing trailing parts
// are zero.
func ParseVersion(s string) (v Version, err error) {
	parts := strings.Split(s, ".")
	if len(parts) > 4 || s == "" {
		return v, fmt.Errorf("invalid version %q", s)
	}
	vals := [4]uint8{}
	for n, p := range parts {
		val, e := strconv.ParseUint(p, 10, 8)
		if e != nil {
			return v, fmt.Errorf("invalid version %q: %v", s, e)
		}
		vals[n] = uint8(val)
	}
	return Version{Major: vals[0], Minor: vals[1], Maint: vals[2], Devel: vals[3]}, nil
}

// Header is kept at the end of areas with HasHeader. The bootloader
// writes it when installing a scratchpad file into the area.
type Header struct {
	// Length and CRC of the scratchpad the area was installed from.
	Length uint32
	CRC    uint16
	Seq    uint8
	// Version of the installed file.
	Version Version
}

const (
	// HeaderSize is the packed size of a Header.
	HeaderSize = 11
	// HeaderSlotSize is the space reserved at the end of the area.
	HeaderSlotSize = 16
)

// Bytes encodes the header into a full slot, padded with erased bytes.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSlotSize)
	for n := range b {
		b[n] = 0xff
	}
	binary.LittleEndian.PutUint32(b[0:], h.Length)
	binary.LittleEndian.PutUint16(b[4:], h.CRC)
	b[6] = h.Seq
	b[7], b[8], b[9], b[10] = h.Version.Major, h.Version.Minor, h.Version.Maint, h.Version.Devel
	return b
}

// DecodeHeader decodes a header from at least HeaderSize bytes.
func DecodeHeader(b []byte) (h Header, err error) {
	if len(b) < HeaderSize {
		return h, flash.ErrParam
	}
	h.Length = binary.LittleEndian.Uint32(b[0:])
	h.CRC = binary.LittleEndian.Uint16(b[4:])
	h.Seq = b[6]
	h.Version = Version{Major: b[7], Minor: b[8], Maint: b[9], Devel: b[10]}
	return h, nil
}

// IsBlank reports an erased header, meaning nothing has been installed.
func (h Header) IsBlank() bool {
	return h.Length == 0xffffffff && h.CRC == 0xffff && h.Seq == 0xff
}
