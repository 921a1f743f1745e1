package flash

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Storage is the backing store of a simulated medium.
type Storage interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
}

// MemoryStorage keeps the medium contents in memory.
type MemoryStorage []byte

// NewMemoryStorage creates an erased MemoryStorage of size bytes.
func NewMemoryStorage(size uint32) MemoryStorage {
	return MemoryStorage(bytes.Repeat([]byte{0xff}, int(size)))
}

// ReadAt implements io.ReaderAt.
func (s MemoryStorage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(s)) {
		return 0, io.ErrUnexpectedEOF
	}
	return copy(p, s[off:]), nil
}

// WriteAt implements io.WriterAt.
func (s MemoryStorage) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(s)) {
		return 0, io.ErrShortWrite
	}
	return copy(s[off:], p), nil
}

// Size implements Storage.
func (s MemoryStorage) Size() int64 {
	return int64(len(s))
}

// FileStorage keeps the medium contents in a file so a simulated node
// survives restarts.
type FileStorage struct {
	file *os.File
	size int64
}

// OpenFileStorage opens or creates the file at path. A new or short file
// is extended with erased (0xff) bytes up to size.
func OpenFileStorage(path string, size uint32) (*FileStorage, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if cur := info.Size(); cur < int64(size) {
		fill := bytes.Repeat([]byte{0xff}, int(int64(size)-cur))
		if _, err = f.WriteAt(fill, cur); err != nil {
			f.Close()
			return nil, fmt.Errorf("initialize %s: %v", path, err)
		}
	}
	return &FileStorage{file: f, size: int64(size)}, nil
}

// ReadAt implements io.ReaderAt.
func (s *FileStorage) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (s *FileStorage) WriteAt(p []byte, off int64) (int, error) {
	return s.file.WriteAt(p, off)
}

// Size implements Storage.
func (s *FileStorage) Size() int64 {
	return s.size
}

// Close closes the backing file.
func (s *FileStorage) Close() error {
	return s.file.Close()
}
