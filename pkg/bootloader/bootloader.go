// Package bootloader installs a scratchpad marked for processing. It runs
// before the node starts its loop, so it waits on flash completion
// instead of chaining callbacks.
package bootloader

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/golang/glog"

	"github.com/robotalks/meshota/pkg/area"
	"github.com/robotalks/meshota/pkg/flash"
	"github.com/robotalks/meshota/pkg/image"
	"github.com/robotalks/meshota/pkg/scratchpad"
)

// Status codes written into the scratchpad header after processing.
const (
	StatusOK            = scratchpad.StatusOK
	StatusInvalidCRC    = 1
	StatusInvalidFormat = 2
	StatusUnknownArea   = 3
	StatusTooLarge      = 4
	StatusFlashError    = 5
)

// Outcome describes what Process did.
type Outcome struct {
	// Processed is false when there was nothing to install.
	Processed bool
	// Status is the status word written to the scratchpad.
	Status uint32
	// Installed lists the areas written.
	Installed []area.ID
}

// Process installs the scratchpad when it is tagged, marked for
// processing and not yet processed. Every file is written to its area,
// areas with headers get the scratchpad length, CRC, sequence and file
// version. The result is recorded in the status word of the scratchpad.
func Process(ctx context.Context, table *area.Table) (*Outcome, error) {
	sp, ok := table.FindType(area.TypeScratchpad)
	if !ok {
		return nil, scratchpad.ErrNoArea
	}
	b := &bootloader{ctx: ctx, table: table, scratchpad: sp}
	prefix := make([]byte, scratchpad.PrefixSize)
	if err := b.read(sp.ID, 0, prefix); err != nil {
		return nil, err
	}
	if !bytes.Equal(prefix[:scratchpad.TagSize], scratchpad.Tag) {
		return &Outcome{}, nil
	}
	h := scratchpad.DecodeHeader(prefix[scratchpad.TagSize:])
	if !h.Check(sp.Size) || h.Type != scratchpad.TypeProcess || h.Status != scratchpad.StatusNew {
		return &Outcome{}, nil
	}

	glog.Infof("bootloader: processing scratchpad seq %d, %d bytes", h.Seq, h.Total())
	out := &Outcome{Processed: true}
	out.Status, out.Installed = b.install(h)
	if out.Status == StatusOK {
		glog.Infof("bootloader: installed %v", out.Installed)
	} else {
		glog.Errorf("bootloader: scratchpad seq %d failed with status %d", h.Seq, out.Status)
	}
	word := make([]byte, 4)
	binary.LittleEndian.PutUint32(word, out.Status)
	err := b.run(sp.ID, func(done flash.Callback) error {
		return area.Write(table, sp.ID, scratchpad.TagSize+12, word, done)
	})
	return out, err
}

type bootloader struct {
	ctx        context.Context
	table      *area.Table
	scratchpad area.Area
}

func (b *bootloader) install(h scratchpad.Header) (uint32, []area.ID) {
	payload := make([]byte, h.Length)
	if err := b.read(b.scratchpad.ID, scratchpad.PrefixSize, payload); err != nil {
		glog.Errorf("bootloader: read scratchpad: %v", err)
		return StatusFlashError, nil
	}
	if scratchpad.CRC16(scratchpad.CRCInit, payload) != h.CRC {
		return StatusInvalidCRC, nil
	}
	img, err := image.ParsePayload(payload)
	if err != nil {
		glog.Errorf("bootloader: %v", err)
		return StatusInvalidFormat, nil
	}
	files := make([]file, 0, len(img.Entries))
	for _, e := range img.Entries {
		a, err := b.table.Area(e.AreaID)
		if err != nil || a.ID == b.scratchpad.ID {
			glog.Errorf("bootloader: no target area %s", e.AreaID)
			return StatusUnknownArea, nil
		}
		data, err := e.Decompress()
		if err != nil {
			glog.Errorf("bootloader: %v", err)
			return StatusInvalidFormat, nil
		}
		if uint32(len(data)) > area.PayloadSize(a) {
			return StatusTooLarge, nil
		}
		files = append(files, file{area: a, version: e.Version, data: data})
	}

	// Headers carry the processed status, so they are written only once
	// every area holds its new content.
	var installed []area.ID
	for _, f := range files {
		if err := b.write(f.area, f.data); err != nil {
			glog.Errorf("bootloader: write area %s: %v", f.area.ID, err)
			return StatusFlashError, installed
		}
		installed = append(installed, f.area.ID)
	}
	for _, f := range files {
		if !f.area.HasHeader {
			continue
		}
		ah := area.Header{Length: h.Total(), CRC: h.CRC, Seq: uint8(h.Seq), Version: f.version}
		if err := b.run(f.area.ID, func(done flash.Callback) error {
			return area.WriteHeader(b.table, f.area.ID, ah, done)
		}); err != nil {
			return StatusFlashError, installed
		}
	}
	return StatusOK, installed
}

type file struct {
	area    area.Area
	version area.Version
	data    []byte
}

func (b *bootloader) write(a area.Area, data []byte) error {
	info, err := b.table.Info(a.ID)
	if err != nil {
		return err
	}
	if rem := uint32(len(data)) % info.Timing.WriteAlignment; rem != 0 {
		data = append(data, bytes.Repeat([]byte{0xff}, int(info.Timing.WriteAlignment-rem))...)
	}
	if err = b.run(a.ID, func(done flash.Callback) error {
		return area.Erase(b.table, a.ID, done)
	}); err != nil {
		return err
	}
	return b.run(a.ID, func(done flash.Callback) error {
		return area.Write(b.table, a.ID, 0, data, done)
	})
}

func (b *bootloader) read(id area.ID, offset uint32, buf []byte) error {
	return b.run(id, func(done flash.Callback) error {
		return area.Read(b.table, id, offset, buf, done)
	})
}

func (b *bootloader) run(id area.ID, start func(flash.Callback) error) error {
	return area.Run(b.ctx, b.table, id, start)
}
