package flash

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/meshota/pkg/framework"
)

// Medium is a Driver simulating NOR flash on top of a Storage.
// Writes can only clear bits; erase sets whole sectors to 0xff.
type Medium struct {
	// Name is used in logs.
	Name string
	// MaxEraseSectors limits the sectors erased per StartErase call.
	// Zero means no limit.
	MaxEraseSectors uint32

	timing  Timing
	storage Storage
	clock   fx.Clock

	op   *operation
	lock sync.Mutex
}

type opKind int

const (
	opRead opKind = iota
	opWrite
	opErase
)

func (k opKind) String() string {
	switch k {
	case opRead:
		return "read"
	case opWrite:
		return "write"
	case opErase:
		return "erase"
	}
	return "unknown"
}

type operation struct {
	kind    opKind
	addr    uint32
	buf     []byte
	sectors uint32
	doneAt  time.Time
	done    Callback
}

// NewMedium creates a Medium. The storage must be at least
// timing.FlashSize bytes.
func NewMedium(name string, timing Timing, storage Storage, clock fx.Clock) (*Medium, error) {
	if err := timing.Validate(); err != nil {
		return nil, fmt.Errorf("medium %s: invalid timing profile", name)
	}
	if storage.Size() < int64(timing.FlashSize) {
		return nil, fmt.Errorf("medium %s: storage smaller than flash size", name)
	}
	return &Medium{
		Name:    name,
		timing:  timing,
		storage: storage,
		clock:   fx.ClockOrSystem(clock),
	}, nil
}

// NewMemoryMedium creates a Medium backed by erased memory.
func NewMemoryMedium(name string, timing Timing, clock fx.Clock) *Medium {
	m, err := NewMedium(name, timing, NewMemoryStorage(timing.FlashSize), clock)
	if err != nil {
		panic(err)
	}
	return m
}

// Timing implements Driver.
func (m *Medium) Timing() Timing {
	return m.timing
}

// Storage returns the backing storage.
func (m *Medium) Storage() Storage {
	return m.storage
}

// IsBusy implements Driver.
func (m *Medium) IsBusy() bool {
	m.lock.Lock()
	op := m.op
	if op == nil {
		m.lock.Unlock()
		return false
	}
	if m.clock.Now().Before(op.doneAt) {
		m.lock.Unlock()
		return true
	}
	err := m.complete(op)
	m.op = nil
	m.lock.Unlock()

	if err != nil {
		glog.Errorf("flash %s: %s at 0x%x failed: %v", m.Name, op.kind, op.addr, err)
		err = ErrIO
	}
	if op.done != nil {
		op.done(err)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.op != nil
}

// StartRead implements Driver.
func (m *Medium) StartRead(addr uint32, buf []byte, done Callback) error {
	if len(buf) == 0 || !m.inRange(addr, uint32(len(buf))) {
		return ErrParam
	}
	return m.start(&operation{kind: opRead, addr: addr, buf: buf, done: done}, 0)
}

// StartWrite implements Driver.
func (m *Medium) StartWrite(addr uint32, data []byte, done Callback) error {
	n := uint32(len(data))
	t := m.timing
	if n == 0 || n > t.WritePageSize || !m.inRange(addr, n) {
		return ErrParam
	}
	if addr%t.WriteAlignment != 0 || n%t.WriteAlignment != 0 {
		return ErrParam
	}
	if addr/t.WritePageSize != (addr+n-1)/t.WritePageSize {
		return ErrParam
	}
	buf := make([]byte, n)
	copy(buf, data)
	return m.start(&operation{kind: opWrite, addr: addr, buf: buf, done: done}, t.WriteDuration(n))
}

// StartErase implements Driver.
func (m *Medium) StartErase(sector, count uint32, done Callback) (uint32, uint32, error) {
	t := m.timing
	if count == 0 || sector%t.EraseSectorSize != 0 {
		return sector, count, ErrParam
	}
	if uint64(sector)+uint64(count)*uint64(t.EraseSectorSize) > uint64(t.FlashSize) {
		return sector, count, ErrParam
	}
	n := count
	if m.MaxEraseSectors > 0 && n > m.MaxEraseSectors {
		n = m.MaxEraseSectors
	}
	op := &operation{kind: opErase, addr: sector, sectors: n, done: done}
	if err := m.start(op, t.EraseDuration(n)); err != nil {
		return sector, count, err
	}
	return sector + n*t.EraseSectorSize, count - n, nil
}

// AddToLoop implements LoopAdder. The medium is polled every iteration so
// completion callbacks run from the loop.
func (m *Medium) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPoll, fx.ControlFunc(func(fx.ControlContext) error {
		m.IsBusy()
		return nil
	}))
}

func (m *Medium) inRange(addr, n uint32) bool {
	return uint64(addr)+uint64(n) <= uint64(m.timing.FlashSize)
}

func (m *Medium) start(op *operation, d time.Duration) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.op != nil {
		return ErrBusy
	}
	op.doneAt = m.clock.Now().Add(d)
	m.op = op
	glog.V(4).Infof("flash %s: %s at 0x%x started", m.Name, op.kind, op.addr)
	return nil
}

func (m *Medium) complete(op *operation) error {
	switch op.kind {
	case opRead:
		_, err := m.storage.ReadAt(op.buf, int64(op.addr))
		return err
	case opWrite:
		cur := make([]byte, len(op.buf))
		if _, err := m.storage.ReadAt(cur, int64(op.addr)); err != nil {
			return err
		}
		for i := range cur {
			cur[i] &= op.buf[i]
		}
		_, err := m.storage.WriteAt(cur, int64(op.addr))
		return err
	case opErase:
		size := m.timing.EraseSectorSize
		blank := make([]byte, size)
		for i := range blank {
			blank[i] = 0xff
		}
		for i := uint32(0); i < op.sectors; i++ {
			if _, err := m.storage.WriteAt(blank, int64(op.addr+i*size)); err != nil {
				return err
			}
		}
	}
	return nil
}
