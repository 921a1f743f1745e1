package area

import (
	"context"
	"fmt"

	"github.com/robotalks/meshota/pkg/flash"
)

// The functions below run operations spanning several flash calls. Each
// step is started from the completion callback of the previous one, so
// nothing blocks; done is invoked once, after the last step or on the
// first failure. A synchronous error is returned only if the first step
// cannot be started, in which case done is never invoked.

// Erase erases the whole area.
func Erase(t *Table, id ID, done flash.Callback) error {
	info, err := t.Info(id)
	if err != nil {
		return err
	}
	return EraseRange(t, id, 0, info.Size/info.Timing.EraseSectorSize, done)
}

// EraseRange erases count sectors starting at sector offset.
func EraseRange(t *Table, id ID, offset, count uint32, done flash.Callback) error {
	var step func(offset, count uint32) error
	step = func(offset, count uint32) error {
		var next, remaining uint32
		var err error
		next, remaining, err = t.StartErase(id, offset, count, func(err error) {
			if err == nil && remaining > 0 {
				err = step(next, remaining)
				if err == nil {
					return
				}
			}
			invoke(done, err)
		})
		return err
	}
	return step(offset, count)
}

// Write writes data at offset, split at page boundaries of the medium.
// offset and len(data) must follow the write alignment.
func Write(t *Table, id ID, offset uint32, data []byte, done flash.Callback) error {
	info, err := t.Info(id)
	if err != nil {
		return err
	}
	timing := info.Timing
	if len(data) == 0 || offset%timing.WriteAlignment != 0 || uint32(len(data))%timing.WriteAlignment != 0 {
		return flash.ErrParam
	}
	if !info.contains(offset, uint32(len(data))) {
		return flash.ErrParam
	}
	var step func(offset uint32, data []byte) error
	step = func(offset uint32, data []byte) error {
		addr := info.Address + offset
		n := timing.WritePageSize - addr%timing.WritePageSize
		if n > uint32(len(data)) {
			n = uint32(len(data))
		}
		rest := data[n:]
		return t.StartWrite(id, offset, data[:n], func(err error) {
			if err == nil && len(rest) > 0 {
				if err = step(offset+n, rest); err == nil {
					return
				}
			}
			invoke(done, err)
		})
	}
	return step(offset, data)
}

// Read fills buf from offset, split into transfers of at most one page.
func Read(t *Table, id ID, offset uint32, buf []byte, done flash.Callback) error {
	info, err := t.Info(id)
	if err != nil {
		return err
	}
	if len(buf) == 0 || !info.contains(offset, uint32(len(buf))) {
		return flash.ErrParam
	}
	chunk := int(info.Timing.MaxTransfer())
	var step func(offset uint32, buf []byte) error
	step = func(offset uint32, buf []byte) error {
		n := chunk
		if n > len(buf) {
			n = len(buf)
		}
		rest := buf[n:]
		return t.StartRead(id, offset, buf[:n], func(err error) {
			if err == nil && len(rest) > 0 {
				if err = step(offset+uint32(n), rest); err == nil {
					return
				}
			}
			invoke(done, err)
		})
	}
	return step(offset, buf)
}

// WriteHeader writes the header slot of the area. The slot must be erased.
func WriteHeader(t *Table, id ID, h Header, done flash.Callback) error {
	a, err := t.Area(id)
	if err != nil {
		return err
	}
	if !a.HasHeader {
		return ErrNoHeader
	}
	return Write(t, id, a.Size-HeaderSlotSize, h.Bytes(), done)
}

// PayloadSize is the area size available for content, excluding the
// header slot.
func PayloadSize(a Area) uint32 {
	if a.HasHeader {
		return a.Size - HeaderSlotSize
	}
	return a.Size
}

func invoke(done flash.Callback, err error) {
	if done != nil {
		done(err)
	}
}

// Run starts a job on area id and polls the medium until the job
// completes. It blocks, so it is only for code outside the loop or for
// short jobs the loop must not interleave with others.
func Run(ctx context.Context, t *Table, id ID, start func(flash.Callback) error) error {
	drv, err := t.Driver(id)
	if err != nil {
		return err
	}
	if err = flash.Wait(ctx, drv); err != nil {
		return err
	}
	var result error
	finished := false
	if err = start(func(err error) {
		result, finished = err, true
	}); err != nil {
		return err
	}
	if err = flash.Wait(ctx, drv); err != nil {
		return err
	}
	if !finished {
		return fmt.Errorf("area %s: operation did not complete", id)
	}
	return result
}
