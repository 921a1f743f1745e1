// Package image builds and parses scratchpad images: the byte stream
// uploaded into the scratchpad area and processed by the bootloader.
//
// Layout after the scratchpad tag and header:
//
//	CMAC tag (16) | secure header (16) | entry header (16) | data | ...
//
// Each entry carries one raw deflate stream targeting one area, padded
// to BlockSize.
package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/klauspost/compress/flate"

	"github.com/robotalks/meshota/pkg/area"
	"github.com/robotalks/meshota/pkg/scratchpad"
)

const (
	// BlockSize is the padding unit of entries.
	BlockSize = 16
	// CMACSize is the size of the authentication tag.
	CMACSize = 16
	// SecureHeaderSize is the size of the secure header.
	SecureHeaderSize = 16
	// EntryHeaderSize is the size of the header of a file entry.
	EntryHeaderSize = 16
	// MaxFileSize bounds the uncompressed size of a file.
	MaxFileSize = 8 * 1024 * 1024
	// CompressionLevel is used for file data.
	CompressionLevel = 9
)

// UnauthenticatedCMAC is the CMAC tag of images built without keys.
var UnauthenticatedCMAC = bytes.Repeat([]byte{0xff}, CMACSize)

// File is the content of one area.
type File struct {
	AreaID  area.ID
	Version area.Version
	Data    []byte
}

// Entry is a file as stored in an image.
type Entry struct {
	AreaID  area.ID
	Version area.Version
	// Compressed is the raw deflate stream with its padding.
	Compressed []byte
}

// Decompress inflates the entry.
func (e Entry) Decompress() ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(e.Compressed))
	defer r.Close()
	data, err := ioutil.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("area %s: inflate: %v", e.AreaID, err)
	}
	if len(data) > MaxFileSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Image is a parsed scratchpad image.
type Image struct {
	Header       scratchpad.Header
	CMAC         []byte
	SecureHeader []byte
	Entries      []Entry
}

// IsAuthenticated reports whether the image carries a real CMAC tag.
func (img *Image) IsAuthenticated() bool {
	return !bytes.Equal(img.CMAC, UnauthenticatedCMAC)
}

// Compress deflates a file into an entry.
func Compress(f File) (Entry, error) {
	if len(f.Data) == 0 {
		return Entry{}, ErrEmpty
	}
	if len(f.Data) > MaxFileSize {
		return Entry{}, ErrTooLarge
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, CompressionLevel)
	if err != nil {
		return Entry{}, err
	}
	if _, err = w.Write(f.Data); err != nil {
		return Entry{}, err
	}
	if err = w.Close(); err != nil {
		return Entry{}, err
	}
	if pad := buf.Len() % BlockSize; pad != 0 {
		buf.Write(make([]byte, BlockSize-pad))
	}
	return Entry{AreaID: f.AreaID, Version: f.Version, Compressed: buf.Bytes()}, nil
}

// Build creates an image from files. The sequence is SeqAny so the
// sender substitutes its own, the type requests processing.
func Build(files ...File) ([]byte, error) {
	if len(files) == 0 {
		return nil, ErrEmpty
	}
	payload := bytes.NewBuffer(nil)
	payload.Write(UnauthenticatedCMAC)
	payload.Write(bytes.Repeat([]byte{0xff}, SecureHeaderSize))
	for _, f := range files {
		e, err := Compress(f)
		if err != nil {
			return nil, fmt.Errorf("area %s: %v", f.AreaID, err)
		}
		payload.Write(e.header())
		payload.Write(e.Compressed)
	}
	h := scratchpad.Header{
		Length: uint32(payload.Len()),
		CRC:    scratchpad.CRC16(scratchpad.CRCInit, payload.Bytes()),
		Seq:    scratchpad.SeqAny,
		Type:   scratchpad.TypeProcess,
		Status: scratchpad.StatusNew,
	}
	return append(h.Prefix(), payload.Bytes()...), nil
}

// Parse validates tag, header and CRC of an image and lists its entries.
func Parse(data []byte) (*Image, error) {
	if len(data) < scratchpad.PrefixSize || !bytes.Equal(data[:scratchpad.TagSize], scratchpad.Tag) {
		return nil, ErrNoTag
	}
	h := scratchpad.DecodeHeader(data[scratchpad.TagSize:scratchpad.PrefixSize])
	if uint64(h.Length)+scratchpad.PrefixSize != uint64(len(data)) {
		return nil, ErrHeader
	}
	payload := data[scratchpad.PrefixSize:]
	if scratchpad.CRC16(scratchpad.CRCInit, payload) != h.CRC {
		return nil, ErrCRC
	}
	img, err := ParsePayload(payload)
	if err != nil {
		return nil, err
	}
	img.Header = h
	return img, nil
}

// ParsePayload splits the payload following the scratchpad header.
func ParsePayload(payload []byte) (*Image, error) {
	if len(payload) < CMACSize+SecureHeaderSize {
		return nil, ErrHeader
	}
	img := &Image{
		CMAC:         payload[:CMACSize],
		SecureHeader: payload[CMACSize : CMACSize+SecureHeaderSize],
	}
	rest := payload[CMACSize+SecureHeaderSize:]
	for len(rest) > 0 {
		if len(rest) < EntryHeaderSize {
			return nil, ErrEntry
		}
		id := area.ID(binary.LittleEndian.Uint32(rest[0:]))
		length := binary.LittleEndian.Uint32(rest[4:])
		if uint64(length) > uint64(len(rest)-EntryHeaderSize) {
			return nil, fmt.Errorf("%v: area %s length %d", ErrEntry, id, length)
		}
		img.Entries = append(img.Entries, Entry{
			AreaID:     id,
			Version:    area.Version{Major: rest[8], Minor: rest[9], Maint: rest[10], Devel: rest[11]},
			Compressed: rest[EntryHeaderSize : EntryHeaderSize+length],
		})
		rest = rest[EntryHeaderSize+length:]
	}
	return img, nil
}

func (e Entry) header() []byte {
	b := make([]byte, EntryHeaderSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(e.AreaID))
	binary.LittleEndian.PutUint32(b[4:], uint32(len(e.Compressed)))
	b[8], b[9], b[10], b[11] = e.Version.Major, e.Version.Minor, e.Version.Maint, e.Version.Devel
	return b
}
