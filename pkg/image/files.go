package image

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/zeebo/blake3"

	"github.com/robotalks/meshota/pkg/area"
)

// FileSpec names an input file: [version:]area_id:path.
type FileSpec struct {
	Version area.Version
	AreaID  area.ID
	Path    string
}

// ParseFileSpec parses "version:area_id:path" or "area_id:path".
// The area id accepts 0x prefixes.
func ParseFileSpec(s string) (spec FileSpec, err error) {
	fields := strings.SplitN(s, ":", 3)
	if len(fields) == 3 {
		if spec.Version, err = area.ParseVersion(fields[0]); err != nil {
			return spec, err
		}
		fields = fields[1:]
	}
	if len(fields) != 2 || fields[1] == "" {
		return spec, fmt.Errorf("invalid file spec %q", s)
	}
	id, err := strconv.ParseUint(fields[0], 0, 32)
	if err != nil {
		return spec, fmt.Errorf("invalid file spec %q: %v", s, err)
	}
	spec.AreaID, spec.Path = area.ID(id), fields[1]
	return spec, nil
}

// LoadFile reads the file of a spec. Intel HEX files (.hex) are
// flattened from the lowest to the highest address.
func LoadFile(spec FileSpec) (File, error) {
	raw, err := ioutil.ReadFile(spec.Path)
	if err != nil {
		return File{}, err
	}
	data := raw
	if strings.EqualFold(filepath.Ext(spec.Path), ".hex") {
		if data, _, err = LoadHex(bytes.NewReader(raw)); err != nil {
			return File{}, fmt.Errorf("%s: %v", spec.Path, err)
		}
	}
	if len(data) == 0 {
		return File{}, fmt.Errorf("%s: %v", spec.Path, ErrEmpty)
	}
	if len(data) > MaxFileSize {
		return File{}, fmt.Errorf("%s: %v", spec.Path, ErrTooLarge)
	}
	return File{AreaID: spec.AreaID, Version: spec.Version, Data: data}, nil
}

// LoadHex parses Intel HEX and returns the memory between the lowest and
// highest address, gaps filled with 0xff, with the lowest address.
func LoadHex(r io.Reader) ([]byte, uint32, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, 0, err
	}
	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, 0, ErrEmpty
	}
	start, end := segments[0].Address, uint32(0)
	for _, segment := range segments {
		if segment.Address < start {
			start = segment.Address
		}
		if e := segment.Address + uint32(len(segment.Data)); e > end {
			end = e
		}
	}
	if end-start > MaxFileSize {
		return nil, 0, ErrTooLarge
	}
	return mem.ToBinary(start, end-start, 0xff), start, nil
}

// Digest identifies image content.
type Digest [32]byte

// DigestOf computes the BLAKE3 digest of data.
func DigestOf(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short is the first 8 bytes in hex.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:8])
}
