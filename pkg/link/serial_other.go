//go:build !linux

package link

import (
	"errors"
	"os"
)

// OpenSerial is only supported on linux.
func OpenSerial(path string, baud int) (*os.File, error) {
	return nil, errors.New("serial ports are not supported on this platform")
}
