package flash

import "time"

// Timing describes the geometry and timing characteristics of a medium.
type Timing struct {
	// FlashSize is the size of the medium in bytes.
	FlashSize uint32 `yaml:"flash_size"`
	// WritePageSize is the largest write that can be issued in one call.
	// A write never crosses a page boundary.
	WritePageSize uint32 `yaml:"write_page_size"`
	// EraseSectorSize is the erase unit.
	EraseSectorSize uint32 `yaml:"erase_sector_size"`
	// WriteAlignment applies to both write address and length.
	WriteAlignment uint32 `yaml:"write_alignment"`

	// Time for the medium to complete the operation.
	ByteWriteTime   time.Duration `yaml:"byte_write_time"`
	PageWriteTime   time.Duration `yaml:"page_write_time"`
	SectorEraseTime time.Duration `yaml:"sector_erase_time"`

	// Time spent in the call itself, before it returns.
	ByteWriteCallTime   time.Duration `yaml:"byte_write_call_time"`
	PageWriteCallTime   time.Duration `yaml:"page_write_call_time"`
	SectorEraseCallTime time.Duration `yaml:"sector_erase_call_time"`
	IsBusyCallTime      time.Duration `yaml:"is_busy_call_time"`
}

// InternalProfile is the on-chip flash of a typical mesh SoC.
func InternalProfile(size uint32) Timing {
	return Timing{
		FlashSize:           size,
		WritePageSize:       4096,
		EraseSectorSize:     4096,
		WriteAlignment:      4,
		ByteWriteTime:       11 * time.Microsecond,
		PageWriteTime:       43 * time.Millisecond,
		SectorEraseTime:     85 * time.Millisecond,
		ByteWriteCallTime:   11 * time.Microsecond,
		PageWriteCallTime:   43 * time.Millisecond,
		SectorEraseCallTime: 85 * time.Millisecond,
		IsBusyCallTime:      1 * time.Microsecond,
	}
}

// ExternalProfile is a SPI NOR chip attached to the SoC.
func ExternalProfile(size uint32) Timing {
	return Timing{
		FlashSize:           size,
		WritePageSize:       256,
		EraseSectorSize:     4096,
		WriteAlignment:      1,
		ByteWriteTime:       100 * time.Microsecond,
		PageWriteTime:       3200 * time.Microsecond,
		SectorEraseTime:     240 * time.Millisecond,
		ByteWriteCallTime:   30 * time.Microsecond,
		PageWriteCallTime:   150 * time.Microsecond,
		SectorEraseCallTime: 20 * time.Microsecond,
		IsBusyCallTime:      15 * time.Microsecond,
	}
}

// Instant returns a copy with every duration set to zero, so operations
// complete on the next poll.
func (t Timing) Instant() Timing {
	return Timing{
		FlashSize:       t.FlashSize,
		WritePageSize:   t.WritePageSize,
		EraseSectorSize: t.EraseSectorSize,
		WriteAlignment:  t.WriteAlignment,
	}
}

// MaxTransfer is the largest write accepted in one call.
func (t Timing) MaxTransfer() uint32 {
	return t.WritePageSize
}

// NumSectors is the number of erase sectors in the medium.
func (t Timing) NumSectors() uint32 {
	if t.EraseSectorSize == 0 {
		return 0
	}
	return t.FlashSize / t.EraseSectorSize
}

// WriteDuration estimates the time a write of n bytes keeps the medium busy.
func (t Timing) WriteDuration(n uint32) time.Duration {
	if n >= t.WritePageSize {
		return t.PageWriteTime
	}
	d := time.Duration(n) * t.ByteWriteTime
	if t.PageWriteTime > 0 && d > t.PageWriteTime {
		d = t.PageWriteTime
	}
	return d
}

// EraseDuration estimates the time erasing n sectors keeps the medium busy.
func (t Timing) EraseDuration(n uint32) time.Duration {
	return time.Duration(n) * t.SectorEraseTime
}

// Validate checks the geometry is usable.
func (t Timing) Validate() error {
	if t.FlashSize == 0 || t.WritePageSize == 0 || t.EraseSectorSize == 0 || t.WriteAlignment == 0 {
		return ErrParam
	}
	if t.FlashSize%t.EraseSectorSize != 0 || t.WritePageSize%t.WriteAlignment != 0 {
		return ErrParam
	}
	return nil
}
