package area

import (
	"fmt"

	"github.com/robotalks/meshota/pkg/flash"
)

// Table is the catalog of areas of a node. It does no buffering; every
// call is forwarded to the driver of the medium holding the area.
type Table struct {
	areas    []Area
	internal flash.Driver
	external flash.Driver
}

// New validates areas and builds a Table. Either driver may be nil, in
// which case operations on its areas fail with flash.ErrNoDriver.
func New(areas []Area, internal, external flash.Driver) (*Table, error) {
	if len(areas) > MaxAreas {
		return nil, ErrTooManyAreas
	}
	t := &Table{internal: internal, external: external}
	for n, a := range areas {
		if a.ID == UndefinedID {
			return nil, fmt.Errorf("area %d: undefined id", n)
		}
		if a.Size == 0 {
			return nil, fmt.Errorf("area %s: empty", a.ID)
		}
		if a.Type > TypeUser {
			return nil, fmt.Errorf("area %s: %s", a.ID, a.Type)
		}
		for _, o := range areas[:n] {
			if o.ID == a.ID {
				return nil, fmt.Errorf("area %s: duplicated id", a.ID)
			}
			if o.Overlaps(a) {
				return nil, fmt.Errorf("area %s: overlaps area %s", a.ID, o.ID)
			}
		}
		if drv := t.medium(a); drv != nil {
			timing := drv.Timing()
			if a.Address%timing.EraseSectorSize != 0 || a.Size%timing.EraseSectorSize != 0 {
				return nil, fmt.Errorf("area %s: not sector aligned", a.ID)
			}
			if uint64(a.Address)+uint64(a.Size) > uint64(timing.FlashSize) {
				return nil, fmt.Errorf("area %s: outside of medium", a.ID)
			}
			if a.HasHeader && a.Size < HeaderSlotSize {
				return nil, fmt.Errorf("area %s: too small for header", a.ID)
			}
		}
		t.areas = append(t.areas, a)
	}
	return t, nil
}

// List returns the ids of all areas in table order.
func (t *Table) List() []ID {
	ids := make([]ID, len(t.areas))
	for n, a := range t.areas {
		ids[n] = a.ID
	}
	return ids
}

// Area finds an area by id.
func (t *Table) Area(id ID) (Area, error) {
	for _, a := range t.areas {
		if a.ID == id {
			return a, nil
		}
	}
	return Area{}, ErrInvalidArea
}

// Info returns the area with the timing of its medium.
func (t *Table) Info(id ID) (Info, error) {
	a, drv, err := t.resolve(id)
	if err != nil {
		return Info{}, err
	}
	return Info{Area: a, Timing: drv.Timing()}, nil
}

// FindType returns the first area of type at.
func (t *Table) FindType(at Type) (Area, bool) {
	for _, a := range t.areas {
		if a.Type == at {
			return a, true
		}
	}
	return Area{}, false
}

// Driver returns the driver of the medium holding the area.
func (t *Table) Driver(id ID) (flash.Driver, error) {
	_, drv, err := t.resolve(id)
	return drv, err
}

// IsBusy reports whether the medium of the area is busy. Unknown areas
// are never busy.
func (t *Table) IsBusy(id ID) bool {
	_, drv, err := t.resolve(id)
	return err == nil && drv.IsBusy()
}

// StartRead reads len(buf) bytes at offset within the area.
func (t *Table) StartRead(id ID, offset uint32, buf []byte, done flash.Callback) error {
	a, drv, err := t.resolve(id)
	if err != nil {
		return err
	}
	if !a.contains(offset, uint32(len(buf))) {
		return flash.ErrParam
	}
	return drv.StartRead(a.Address+offset, buf, done)
}

// StartWrite writes data at offset within the area. The write follows
// the rules of the medium: aligned, at most one page, within one page.
func (t *Table) StartWrite(id ID, offset uint32, data []byte, done flash.Callback) error {
	a, drv, err := t.resolve(id)
	if err != nil {
		return err
	}
	if !a.contains(offset, uint32(len(data))) {
		return flash.ErrParam
	}
	return drv.StartWrite(a.Address+offset, data, done)
}

// StartErase erases up to count sectors starting at the sector offset
// within the area. The returned next offset and remaining count are
// area relative.
func (t *Table) StartErase(id ID, offset, count uint32, done flash.Callback) (uint32, uint32, error) {
	a, drv, err := t.resolve(id)
	if err != nil {
		return offset, count, err
	}
	if count == 0 || !a.contains(offset, count*drv.Timing().EraseSectorSize) {
		return offset, count, flash.ErrParam
	}
	next, remaining, err := drv.StartErase(a.Address+offset, count, done)
	return next - a.Address, remaining, err
}

// StartReadHeader reads and decodes the header of the area.
func (t *Table) StartReadHeader(id ID, done func(Header, error)) error {
	a, err := t.Area(id)
	if err != nil {
		return err
	}
	if !a.HasHeader {
		return ErrNoHeader
	}
	buf := make([]byte, HeaderSlotSize)
	return t.StartRead(id, a.Size-HeaderSlotSize, buf, func(err error) {
		if err != nil {
			done(Header{}, err)
			return
		}
		done(DecodeHeader(buf))
	})
}

func (t *Table) resolve(id ID) (Area, flash.Driver, error) {
	a, err := t.Area(id)
	if err != nil {
		return a, nil, err
	}
	drv := t.medium(a)
	if drv == nil {
		return a, nil, flash.ErrNoDriver
	}
	return a, drv, nil
}

func (t *Table) medium(a Area) flash.Driver {
	if a.External {
		return t.external
	}
	return t.internal
}

func (a Area) contains(offset, n uint32) bool {
	return uint64(offset)+uint64(n) <= uint64(a.Size)
}
