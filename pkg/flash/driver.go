package flash

import (
	"context"
	"time"
)

// Callback is invoked when an asynchronous operation completes.
// err is nil on success.
type Callback func(err error)

// Driver is the non-blocking interface of one physical medium.
// Only one operation may be in progress at a time; starting another while
// IsBusy reports true fails with ErrBusy.
type Driver interface {
	// Timing reports the geometry and timing of the medium.
	Timing() Timing
	// IsBusy reports whether an operation is still in progress. Polling
	// also completes a finished operation and invokes its callback.
	IsBusy() bool
	// StartRead reads len(buf) bytes at addr into buf.
	StartRead(addr uint32, buf []byte, done Callback) error
	// StartWrite writes data at addr. The data is copied before return.
	StartWrite(addr uint32, data []byte, done Callback) error
	// StartErase erases up to count whole sectors starting at the sector
	// base address. It may erase fewer; next is the base of the first
	// sector not erased by this call and remaining the number of sectors
	// still to erase.
	StartErase(sector, count uint32, done Callback) (next, remaining uint32, err error)
}

// WaitInterval is how often Wait polls the driver.
var WaitInterval = time.Millisecond

// Wait polls d until it is idle or ctx is done. It is meant for code
// running outside the cooperative loop, like the bootloader.
func Wait(ctx context.Context, d Driver) error {
	for d.IsBusy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(WaitInterval):
		}
	}
	return nil
}
