package node

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/glog"

	"github.com/robotalks/meshota/pkg/area"
	"github.com/robotalks/meshota/pkg/flash"
	"github.com/robotalks/meshota/pkg/otap"
)

// Record is the node state kept in the persistent area across reboots.
type Record struct {
	Target       otap.Target `cbor:"1,keyasint"`
	StackStarted bool        `cbor:"2,keyasint"`
	Locks        *otap.Locks `cbor:"3,keyasint,omitempty"`
	Boots        uint32      `cbor:"4,keyasint"`
}

// ErrRecordCorrupted indicates a record length beyond the area.
var ErrRecordCorrupted = errors.New("persistent record corrupted")

var encMode cbor.EncMode

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("node: CBOR encoder initialization failed: " + err.Error())
	}
}

// The record is stored as a 4-byte little endian length followed by
// the CBOR encoding, padded with 0xff to the write alignment. An erased
// length means no record.
const recordLenSize = 4

type persister struct {
	table *area.Table
	info  area.Info
	dirty bool
}

func newPersister(table *area.Table) *persister {
	a, ok := table.FindType(area.TypePersistent)
	if !ok {
		glog.Warning("node: no persistent area, state is not kept across reboots")
		return nil
	}
	info, err := table.Info(a.ID)
	if err != nil {
		return nil
	}
	return &persister{table: table, info: info}
}

func (p *persister) load(ctx context.Context) (rec Record, err error) {
	id := p.info.ID
	prefix := make([]byte, recordLenSize)
	if err = area.Run(ctx, p.table, id, func(done flash.Callback) error {
		return area.Read(p.table, id, 0, prefix, done)
	}); err != nil {
		return
	}
	n := binary.LittleEndian.Uint32(prefix)
	if n == 0xffffffff || n == 0 {
		return
	}
	if uint64(n)+recordLenSize > uint64(p.info.Size) {
		return rec, ErrRecordCorrupted
	}
	data := make([]byte, n)
	if err = area.Run(ctx, p.table, id, func(done flash.Callback) error {
		return area.Read(p.table, id, recordLenSize, data, done)
	}); err != nil {
		return
	}
	if err = cbor.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode persistent record: %v", err)
	}
	return
}

func (p *persister) save(ctx context.Context, rec *Record) error {
	data, err := encMode.Marshal(rec)
	if err != nil {
		return err
	}
	align := p.info.Timing.WriteAlignment
	size := uint32(recordLenSize + len(data))
	if rem := size % align; rem != 0 {
		size += align - rem
	}
	if size > p.info.Size {
		return ErrRecordCorrupted
	}
	buf := make([]byte, size)
	for n := range buf {
		buf[n] = 0xff
	}
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[recordLenSize:], data)

	sector := p.info.Timing.EraseSectorSize
	id := p.info.ID
	if err = area.Run(ctx, p.table, id, func(done flash.Callback) error {
		return area.EraseRange(p.table, id, 0, (size+sector-1)/sector, done)
	}); err != nil {
		return fmt.Errorf("erase persistent area: %v", err)
	}
	if err = area.Run(ctx, p.table, id, func(done flash.Callback) error {
		return area.Write(p.table, id, 0, buf, done)
	}); err != nil {
		return fmt.Errorf("write persistent area: %v", err)
	}
	glog.V(2).Infof("node: persisted %d bytes", len(data))
	return nil
}
