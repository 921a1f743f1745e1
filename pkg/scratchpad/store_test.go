package scratchpad

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/meshota/pkg/area"
	"github.com/robotalks/meshota/pkg/flash"
	fx "github.com/robotalks/meshota/pkg/framework"
)

type storeTestEnv struct {
	t           *testing.T
	clock       *fx.ManualClock
	internal    *flash.Medium
	external    *flash.Medium
	table       *area.Table
	store       *Store
	storage     *failingStorage
	transitions []State
}

// failingStorage refuses writes while failWrites is set.
type failingStorage struct {
	flash.MemoryStorage
	failWrites bool
}

func (s *failingStorage) WriteAt(p []byte, off int64) (int, error) {
	if s.failWrites {
		return 0, io.ErrShortWrite
	}
	return s.MemoryStorage.WriteAt(p, off)
}

func newStoreTestEnv(t *testing.T) *storeTestEnv {
	env := &storeTestEnv{t: t, clock: fx.NewManualClock(time.Unix(0, 0))}
	env.internal = flash.NewMemoryMedium("internal", flash.InternalProfile(area.DefaultInternalSize), env.clock)
	env.storage = &failingStorage{MemoryStorage: flash.NewMemoryStorage(area.DefaultExternalSize)}
	external, err := flash.NewMedium("external", flash.ExternalProfile(area.DefaultExternalSize), env.storage, env.clock)
	require.NoError(t, err)
	env.external = external
	table, err := area.New(area.DefaultAreas(), env.internal, env.external)
	require.NoError(t, err)
	env.table = table
	env.store = env.newStore()
	return env
}

func (e *storeTestEnv) newStore() *Store {
	store, err := NewStore(e.table)
	require.NoError(e.t, err)
	store.OnTransition = func(from, to State) {
		e.transitions = append(e.transitions, to)
	}
	return store
}

// settle advances the clock until both media stay idle.
func (e *storeTestEnv) settle() {
	idle := 0
	for n := 0; n < 100000 && idle < 2; n++ {
		if e.internal.IsBusy() || e.external.IsBusy() {
			idle = 0
			e.clock.Advance(10 * time.Millisecond)
			continue
		}
		idle++
	}
	require.Equal(e.t, 2, idle, "media never settled")
}

func (e *storeTestEnv) begin(numBytes uint32, seq Seq) {
	var result error
	called := false
	require.NoError(e.t, e.store.Begin(numBytes, seq, func(err error) {
		result, called = err, true
	}))
	e.settle()
	require.True(e.t, called)
	require.NoError(e.t, result)
}

func (e *storeTestEnv) write(offset uint32, data []byte) WriteResult {
	final := WriteResult(0xff)
	res := e.store.Write(offset, data, func(r WriteResult) { final = r })
	if res != WriteOK {
		return res
	}
	e.settle()
	require.NotEqual(e.t, WriteResult(0xff), final, "write never completed")
	return final
}

func (e *storeTestEnv) transfer(image []byte, block int) WriteResult {
	res := WriteOK
	for off := 0; off < len(image); off += block {
		end := off + block
		if end > len(image) {
			end = len(image)
		}
		res = e.write(uint32(off), image[off:end])
		if res != WriteOK {
			break
		}
	}
	return res
}

func (e *storeTestEnv) validity() Validity {
	var v Validity
	var result error
	require.NoError(e.t, e.store.Validity(func(val Validity, err error) {
		v, result = val, err
	}))
	e.settle()
	require.NoError(e.t, result)
	return v
}

func (e *storeTestEnv) status() Status {
	var st Status
	var result error
	called := false
	require.NoError(e.t, e.store.Status(func(s Status, err error) {
		st, result, called = s, err, true
	}))
	e.settle()
	require.True(e.t, called)
	require.NoError(e.t, result)
	return st
}

func (e *storeTestEnv) clear() {
	var result error
	require.NoError(e.t, e.store.Clear(func(err error) { result = err }))
	e.settle()
	require.NoError(e.t, result)
}

func (e *storeTestEnv) setBootable() error {
	result := flash.ErrIO
	require.NoError(e.t, e.store.SetBootable(func(err error) { result = err }))
	e.settle()
	return result
}

func testImage(numBytes int, seq Seq) []byte {
	payload := make([]byte, numBytes-PrefixSize)
	for n := range payload {
		payload[n] = byte(n*7 + 3)
	}
	h := Header{
		Length: uint32(len(payload)),
		CRC:    CRC16(CRCInit, payload),
		Seq:    seq,
		Type:   TypeProcess,
		Status: StatusNew,
	}
	return append(h.Prefix(), payload...)
}

func TestCRC16(t *testing.T) {
	require.Equal(t, uint16(0x29b1), CRC16(CRCInit, []byte("123456789")))
	crc := CRC16(CRCInit, []byte("1234"))
	require.Equal(t, uint16(0x29b1), CRC16(crc, []byte("56789")))
}

func TestTransferValid(t *testing.T) {
	env := newStoreTestEnv(t)
	image := testImage(1024, SeqAny)
	env.begin(1024, 7)
	require.Equal(t, StateTransferring, env.store.State())
	require.Equal(t, Unknown, env.validity())

	require.Equal(t, WriteOK, env.write(0, image[:512]))
	require.Equal(t, WriteCompletedOK, env.write(512, image[512:]))
	_, open := env.store.Session()
	require.False(t, open)

	require.Equal(t, Valid, env.validity())
	st := env.status()
	require.Equal(t, StoredStatus{
		NumBytes: 1024,
		CRC:      CRC16(CRCInit, image[PrefixSize:]),
		Seq:      7,
		Type:     StoredPresent,
		Status:   StatusNew,
	}, st.Stored)
	require.Equal(t, ProcessedStatus{}, st.Processed)
	require.Equal(t, []State{StateTransferring, StateCompleteValid}, env.transitions)

	buf := make([]byte, 16)
	require.NoError(t, env.store.Read(PrefixSize, buf, func(err error) { require.NoError(t, err) }))
	env.settle()
	require.Equal(t, image[PrefixSize:PrefixSize+16], buf)
}

func TestTransferBlocks(t *testing.T) {
	testCases := []struct {
		size  int
		block int
	}{
		{96, 96},
		{96, 4},
		{1024, 112},
		{5000, 112},
		{9000, 256},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d/%d", tc.size, tc.block), func(t *testing.T) {
			env := newStoreTestEnv(t)
			env.begin(uint32(tc.size), 3)
			require.Equal(t, WriteCompletedOK, env.transfer(testImage(tc.size, 3), tc.block))
			require.Equal(t, Valid, env.validity())
		})
	}
}

func TestTransferRejections(t *testing.T) {
	env := newStoreTestEnv(t)
	image := testImage(1024, 7)
	require.Equal(t, WriteNotOngoing, env.store.Write(0, image[:16], nil))

	env.begin(1024, 7)
	require.Equal(t, WriteOK, env.write(0, image[:512]))

	testCases := []struct {
		name   string
		offset uint32
		data   []byte
		result WriteResult
	}{
		{"overlapping", 500, image[500:1012], WriteInvalidStart},
		{"gap", 516, image[516:520], WriteInvalidStart},
		{"over length", 512, append(image[512:], 0, 0, 0, 0), WriteInvalidNumBytes},
		{"unaligned length", 512, image[512:514], WriteInvalidNumBytes},
		{"empty", 512, []byte{}, WriteInvalidNumBytes},
		{"null", 512, nil, WriteInvalidNullBytes},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.result, env.store.Write(tc.offset, tc.data, nil))
			sess, ok := env.store.Session()
			require.True(t, ok)
			require.Equal(t, Session{DeclaredLength: 1024, Sequence: 7, BytesWritten: 512, NextOffset: 512}, sess)
		})
	}
}

func TestTransferInvalidHeader(t *testing.T) {
	env := newStoreTestEnv(t)
	env.begin(1024, 7)
	bad := testImage(1024, 7)
	bad[3] = 'X'
	require.Equal(t, WriteInvalidHeader, env.store.Write(0, bad[:16], nil))
	require.Equal(t, WriteOK, env.write(0, bad[:4]), "tag not complete yet")
	require.Equal(t, WriteInvalidHeader, env.store.Write(4, bad[4:16], nil))
	sess, _ := env.store.Session()
	require.Equal(t, uint32(4), sess.NextOffset)

	env = newStoreTestEnv(t)
	env.begin(1024, 7)
	short := testImage(1000, 7)
	require.Equal(t, WriteOK, env.write(0, short[:16]))
	require.Equal(t, WriteInvalidHeader, env.store.Write(16, short[16:32], nil), "length does not match transfer")
	sess, _ = env.store.Session()
	require.Equal(t, uint32(16), sess.NextOffset)
	require.Equal(t, WriteOK, env.write(16, testImage(1024, 7)[16:32]))
}

func TestTransferCRCError(t *testing.T) {
	env := newStoreTestEnv(t)
	image := testImage(1024, 7)
	image[700] ^= 0x10
	env.begin(1024, 7)
	require.Equal(t, WriteCompletedError, env.transfer(image, 112))
	require.Equal(t, InvalidCRC, env.validity())
	require.Equal(t, StateCompleteInvalid, env.store.State())
	st := env.status()
	require.Equal(t, StoredStatus{}, st.Stored)
	require.Equal(t, ErrNotValid, env.setBootable())
}

func TestTransferFlashError(t *testing.T) {
	env := newStoreTestEnv(t)
	image := testImage(1024, 7)
	env.begin(1024, 7)
	env.storage.failWrites = true
	require.Equal(t, WriteFlashError, env.write(0, image[:112]))
	sess, ok := env.store.Session()
	require.True(t, ok)
	require.Equal(t, uint32(0), sess.NextOffset)
	require.Nil(t, env.store.header, "header kept from a block that never reached flash")
	for _, b := range env.store.prefix {
		require.Equal(t, byte(0xff), b)
	}

	env.storage.failWrites = false
	require.Equal(t, WriteCompletedOK, env.transfer(image, 112))
	require.Equal(t, Valid, env.validity())
}

func TestReset(t *testing.T) {
	env := newStoreTestEnv(t)
	image := testImage(1024, 9)
	env.begin(1024, 9)
	require.Equal(t, WriteOK, env.write(0, image[:112]))

	env.store.Reset()
	_, open := env.store.Session()
	require.False(t, open)
	require.Equal(t, StateEmpty, env.store.State())
	require.False(t, env.store.IsBusy())
	require.NoError(t, env.store.Load(nil))
	env.settle()
	require.Equal(t, StateEmpty, env.store.State())

	env.begin(1024, 10)
	require.Equal(t, WriteCompletedOK, env.transfer(testImage(1024, 10), 112))
	require.Equal(t, StateCompleteValid, env.store.State())
}

func TestBeginRejections(t *testing.T) {
	env := newStoreTestEnv(t)
	require.Equal(t, ErrInvalidNumBytes, env.store.Begin(95, 1, nil))
	require.Equal(t, ErrInvalidNumBytes, env.store.Begin(98, 1, nil))
	require.Equal(t, ErrInvalidNumBytes, env.store.Begin(env.store.Size()+4, 1, nil))
	require.Equal(t, ErrInvalidSeq, env.store.Begin(96, SeqNone, nil))

	env.begin(1024, 7)
	require.Equal(t, ErrSessionActive, env.store.Begin(1024, 8, nil))
	sess, ok := env.store.Session()
	require.True(t, ok)
	require.Equal(t, Seq(7), sess.Sequence)
}

func TestFlashBusy(t *testing.T) {
	env := newStoreTestEnv(t)
	image := testImage(1024, 7)
	env.begin(1024, 7)
	require.Equal(t, WriteOK, env.store.Write(0, image[:112], nil))
	require.True(t, env.store.IsBusy())
	require.Equal(t, WriteFlashError, env.store.Write(0, image[:112], nil))
	env.settle()
	sess, _ := env.store.Session()
	require.Equal(t, uint32(112), sess.NextOffset)
	require.Equal(t, WriteOK, env.write(112, image[112:224]))
}

func TestClear(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(env *storeTestEnv)
	}{
		{"empty", func(env *storeTestEnv) {}},
		{"transferring", func(env *storeTestEnv) {
			env.begin(1024, 7)
			env.write(0, testImage(1024, 7)[:512])
		}},
		{"valid", func(env *storeTestEnv) {
			env.begin(1024, 7)
			env.transfer(testImage(1024, 7), 112)
		}},
		{"armed", func(env *storeTestEnv) {
			env.begin(1024, 7)
			env.transfer(testImage(1024, 7), 112)
			require.NoError(env.t, env.setBootable())
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newStoreTestEnv(t)
			env.external.MaxEraseSectors = 64
			tc.setup(env)
			env.clear()
			require.Equal(t, Clear, env.validity())
			require.Equal(t, StateEmpty, env.store.State())
			_, open := env.store.Session()
			require.False(t, open)
			require.Equal(t, ErrNoScratchpad, env.readErr())
		})
	}
}

func (e *storeTestEnv) readErr() error {
	var result error
	if err := e.store.Read(0, make([]byte, 4), func(err error) { result = err }); err != nil {
		return err
	}
	e.settle()
	return result
}

func TestSetBootable(t *testing.T) {
	env := newStoreTestEnv(t)
	env.begin(1024, 9)
	require.Equal(t, ErrSessionActive, env.store.SetBootable(nil))
	require.Equal(t, ErrSessionActive, env.store.Read(0, make([]byte, 4), nil))
	require.Equal(t, WriteCompletedOK, env.transfer(testImage(1024, 9), 112))

	require.NoError(t, env.setBootable())
	require.Equal(t, StateArmed, env.store.State())
	st := env.status()
	require.Equal(t, StoredProcess, st.Stored.Type)
	require.Equal(t, Seq(9), st.Stored.Seq)

	require.NoError(t, env.setBootable(), "already marked")
	require.Equal(t, Valid, env.validity())
}

func TestProcessedStatus(t *testing.T) {
	env := newStoreTestEnv(t)
	h := area.Header{Length: 4096, CRC: 0x1234, Seq: 5, Version: area.Version{Major: 5, Minor: 1}}
	require.NoError(t, area.WriteHeader(env.table, area.StackID, h, nil))
	env.settle()
	st := env.status()
	require.Equal(t, Clear, st.Validity)
	require.Equal(t, ProcessedStatus{
		NumBytes: 4096,
		CRC:      0x1234,
		Seq:      5,
		AreaID:   area.StackID,
		Version:  area.Version{Major: 5, Minor: 1},
	}, st.Processed)
}

func TestLoad(t *testing.T) {
	env := newStoreTestEnv(t)
	env.begin(2048, 11)
	require.Equal(t, WriteCompletedOK, env.transfer(testImage(2048, 11), 112))

	store := env.newStore()
	require.Equal(t, StateEmpty, store.State())
	require.NoError(t, store.Load(nil))
	env.settle()
	require.Equal(t, StateCompleteValid, store.State())

	// a torn transfer leaves the tag erased
	env.store = store
	env.external.MaxEraseSectors = 64
	env.clear()
	env.begin(2048, 12)
	require.Equal(t, WriteOK, env.transfer(testImage(2048, 12)[:1024], 112))
	store = env.newStore()
	require.NoError(t, store.Load(nil))
	env.settle()
	require.Equal(t, StateEmpty, store.State())

	var v Validity
	require.NoError(t, store.Validity(func(val Validity, err error) { v = val }))
	env.settle()
	require.Equal(t, Clear, v)
}
