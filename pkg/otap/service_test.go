package otap

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/meshota/pkg/area"
	"github.com/robotalks/meshota/pkg/flash"
	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/image"
	"github.com/robotalks/meshota/pkg/scratchpad"
)

type otapTestEnv struct {
	t        *testing.T
	clock    *fx.ManualClock
	internal *flash.Medium
	external *flash.Medium
	service  *Service
	reboots  int
	targets  []Target
}

func newOTAPTestEnv(t *testing.T) *otapTestEnv {
	return newOTAPTestEnvWithClock(t, fx.NewManualClock(time.Unix(0, 0)))
}

// newOTAPTestEnvWithClock uses instant flash timing so media settle
// without moving the clock.
func newOTAPTestEnvWithClock(t *testing.T, clock *fx.ManualClock) *otapTestEnv {
	env := &otapTestEnv{t: t, clock: clock}
	env.internal = flash.NewMemoryMedium("internal", flash.InternalProfile(area.DefaultInternalSize).Instant(), clock)
	env.external = flash.NewMemoryMedium("external", flash.ExternalProfile(area.DefaultExternalSize).Instant(), clock)
	table, err := area.New(area.DefaultAreas(), env.internal, env.external)
	require.NoError(t, err)
	store, err := scratchpad.NewStore(table)
	require.NoError(t, err)
	env.service = NewService(store)
	env.service.Clock = clock
	env.service.OnReboot = func() { env.reboots++ }
	env.service.OnTargetChanged = func(tgt Target) { env.targets = append(env.targets, tgt) }
	return env
}

func (e *otapTestEnv) settle() {
	idle := 0
	for n := 0; n < 100000 && idle < 2; n++ {
		if e.internal.IsBusy() || e.external.IsBusy() {
			idle = 0
			continue
		}
		idle++
	}
	require.Equal(e.t, 2, idle, "media never settled")
}

func (e *otapTestEnv) start(numBytes uint32, seq uint8) StartResult {
	res := StartResult(0xff)
	e.service.Start(numBytes, seq, func(r StartResult) { res = r })
	e.settle()
	require.NotEqual(e.t, StartResult(0xff), res, "start never completed")
	return res
}

func (e *otapTestEnv) block(start uint32, data []byte) BlockResult {
	res := BlockResult(0xff)
	e.service.Block(start, data, func(r BlockResult) { res = r })
	e.settle()
	require.NotEqual(e.t, BlockResult(0xff), res, "block never completed")
	return res
}

// upload sends img in blocks of MaxBlockSize and returns the result of
// the last block.
func (e *otapTestEnv) upload(img []byte) BlockResult {
	res := BlockSuccess
	for off := 0; off < len(img) && res == BlockSuccess; off += MaxBlockSize {
		end := off + MaxBlockSize
		if end > len(img) {
			end = len(img)
		}
		res = e.block(uint32(off), img[off:end])
	}
	return res
}

func (e *otapTestEnv) store(img []byte, seq uint8) {
	require.Equal(e.t, StartSuccess, e.start(uint32(len(img)), seq))
	require.Equal(e.t, BlockCompletedOK, e.upload(img))
}

func (e *otapTestEnv) status() StatusInfo {
	var info StatusInfo
	called := false
	e.service.Status(func(i StatusInfo, err error) {
		require.NoError(e.t, err)
		info, called = i, true
	})
	e.settle()
	require.True(e.t, called)
	return info
}

func (e *otapTestEnv) readBlock(start, n uint32) (ReadResult, []byte) {
	res := ReadResult(0xff)
	var data []byte
	e.service.ReadBlock(start, n, func(r ReadResult, b []byte) { res, data = r, b })
	e.settle()
	require.NotEqual(e.t, ReadResult(0xff), res, "read never completed")
	return res, data
}

func (e *otapTestEnv) bootable() BootableResult {
	res := BootableResult(0xff)
	e.service.Bootable(func(r BootableResult) { res = r })
	e.settle()
	return res
}

func (e *otapTestEnv) clear() ClearResult {
	res := ClearResult(0xff)
	e.service.Clear(func(r ClearResult) { res = r })
	e.settle()
	return res
}

func (e *otapTestEnv) requestUpdate(seq uint8, delay time.Duration) RemoteResult {
	res := RemoteResult(0xff)
	e.service.RequestUpdate(seq, delay, func(r RemoteResult) { res = r })
	e.settle()
	require.NotEqual(e.t, RemoteResult(0xff), res, "update never completed")
	return res
}

// testImage builds a scratchpad of numBytes whose payload starts with
// the given CMAC tag byte repeated.
func testImage(numBytes int, cmac byte) []byte {
	payload := make([]byte, numBytes-scratchpad.PrefixSize)
	for n := range payload {
		payload[n] = byte(n*5 + 1)
	}
	copy(payload, bytes.Repeat([]byte{cmac}, cmacSize))
	h := scratchpad.Header{
		Length: uint32(len(payload)),
		CRC:    scratchpad.CRC16(scratchpad.CRCInit, payload),
		Seq:    scratchpad.SeqAny,
		Type:   scratchpad.TypeProcess,
		Status: scratchpad.StatusNew,
	}
	return append(h.Prefix(), payload...)
}

func TestServiceTransfer(t *testing.T) {
	env := newOTAPTestEnv(t)
	img := testImage(1024, 0xff)
	require.Equal(t, StartSuccess, env.start(1024, 7))

	info := env.status()
	require.True(t, info.Transferring)
	require.Equal(t, scratchpad.Unknown, info.Validity)
	require.Equal(t, uint32(1024), info.Session.DeclaredLength)
	require.Equal(t, scratchpad.Seq(7), info.Session.Sequence)

	require.Equal(t, BlockCompletedOK, env.upload(img))
	info = env.status()
	require.False(t, info.Transferring)
	require.Equal(t, scratchpad.Valid, info.Validity)
	require.Equal(t, scratchpad.StoredStatus{
		NumBytes: 1024,
		CRC:      scratchpad.CRC16(scratchpad.CRCInit, img[scratchpad.PrefixSize:]),
		Seq:      7,
		Type:     scratchpad.StoredPresent,
		Status:   scratchpad.StatusNew,
	}, info.Stored)
}

func TestServiceTransferCorrupted(t *testing.T) {
	env := newOTAPTestEnv(t)
	img := testImage(512, 0xff)
	img[len(img)-1] ^= 0x5a
	require.Equal(t, StartSuccess, env.start(512, 3))
	require.Equal(t, BlockCompletedError, env.upload(img))
	require.Equal(t, scratchpad.InvalidCRC, env.status().Validity)
	require.Equal(t, BootableNoScratchpad, env.bootable())
}

func TestServiceStartRejected(t *testing.T) {
	testCases := []struct {
		name     string
		open     bool
		numBytes uint32
		seq      uint8
		result   StartResult
	}{
		{"unaligned", false, 1022, 1, StartInvalidNumBytes},
		{"too small", false, 64, 1, StartInvalidNumBytes},
		{"seq none", false, 1024, 0, StartInvalidSeq},
		{"session open", true, 1024, 2, StartInvalidState},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newOTAPTestEnv(t)
			if tc.open {
				require.Equal(t, StartSuccess, env.start(1024, 1))
			}
			require.Equal(t, tc.result, env.start(tc.numBytes, tc.seq))
		})
	}
}

func TestServiceBlockRejected(t *testing.T) {
	img := testImage(1024, 0xff)
	testCases := []struct {
		name   string
		open   bool
		start  uint32
		data   []byte
		result BlockResult
	}{
		{"not ongoing", false, 0, img[:16], BlockNotOngoing},
		{"too large", true, 0, img[:MaxBlockSize+4], BlockInvalidNumBytes},
		{"unaligned length", true, 0, img[:18], BlockInvalidNumBytes},
		{"wrong start", true, 16, img[16:32], BlockInvalidStartAddr},
		{"no tag", true, 0, make([]byte, 32), BlockInvalidData},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newOTAPTestEnv(t)
			if tc.open {
				require.Equal(t, StartSuccess, env.start(1024, 1))
			}
			require.Equal(t, tc.result, env.block(tc.start, tc.data))
		})
	}
}

func TestServiceStackState(t *testing.T) {
	env := newOTAPTestEnv(t)
	var changes []bool
	env.service.OnStackChanged = func(started bool) { changes = append(changes, started) }

	require.Equal(t, StackSuccess, env.service.StackStart())
	require.Equal(t, StackInvalidState, env.service.StackStart())
	require.True(t, env.service.StackStarted())

	require.Equal(t, StartInvalidState, env.start(1024, 1))
	require.Equal(t, BlockInvalidState, env.block(0, make([]byte, 16)))
	require.Equal(t, BootableInvalidState, env.bootable())
	require.Equal(t, ClearInvalidState, env.clear())
	require.Equal(t, RemoteInvalidState, env.requestUpdate(1, 0))

	require.Equal(t, StackSuccess, env.service.StackStop())
	require.False(t, env.service.StackStarted())
	require.Equal(t, 1, env.reboots)
	require.Equal(t, StackSuccess, env.service.StackStop())
	require.Equal(t, 2, env.reboots)
	require.Equal(t, []bool{true, false}, changes)
}

func TestServiceLocks(t *testing.T) {
	testCases := []struct {
		name   string
		locked LockBits
		check  func(env *otapTestEnv)
	}{
		{"start", LockScratchpadStart, func(env *otapTestEnv) {
			require.Equal(env.t, StartAccessDenied, env.start(1024, 1))
			require.Equal(env.t, BootableAccessDenied, env.bootable())
			require.Equal(env.t, ClearAccessDenied, env.clear())
			res, data := env.readBlock(0, 16)
			require.Equal(env.t, ReadAccessDenied, res)
			require.Nil(env.t, data)
		}},
		{"status", LockScratchpadStatus, func(env *otapTestEnv) {
			require.Equal(env.t, StatusInfo{}, env.status())
		}},
		{"otap", LockOTAP, func(env *otapTestEnv) {
			require.Equal(env.t, TargetAccessDenied, env.service.WriteTarget(Target{Sequence: 1, Action: ActionPropagateOnly}))
			require.Equal(env.t, RemoteAccessDenied, env.requestUpdate(5, 0))
		}},
		{"stack", LockStackStart | LockStackStop, func(env *otapTestEnv) {
			require.Equal(env.t, StackAccessDenied, env.service.StackStart())
			require.Equal(env.t, StackAccessDenied, env.service.StackStop())
			require.Zero(env.t, env.reboots)
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newOTAPTestEnv(t)
			env.store(testImage(512, 0xff), 5)
			env.service.Locks = Unlocked().Lock(tc.locked)
			tc.check(env)
		})
	}
}

func TestServiceLocksWithoutKey(t *testing.T) {
	env := newOTAPTestEnv(t)
	env.service.Locks = Locks{Bits: 0}
	require.Equal(t, StartSuccess, env.start(1024, 1))
	require.Equal(t, ClearSuccess, env.clear())
	require.Equal(t, StackSuccess, env.service.StackStart())
}

func TestServiceBootable(t *testing.T) {
	env := newOTAPTestEnv(t)
	require.Equal(t, BootableNoScratchpad, env.bootable())
	env.store(testImage(512, 0xff), 9)
	require.Equal(t, BootableSuccess, env.bootable())
	require.Equal(t, scratchpad.StoredProcess, env.status().Stored.Type)
	require.Equal(t, BootableSuccess, env.bootable())
}

func TestServiceClear(t *testing.T) {
	env := newOTAPTestEnv(t)
	env.store(testImage(512, 0xff), 9)
	require.Equal(t, ClearSuccess, env.clear())
	info := env.status()
	require.Equal(t, scratchpad.Clear, info.Validity)
	require.Zero(t, info.Stored.NumBytes)

	require.Equal(t, StartSuccess, env.start(1024, 1))
	require.Equal(t, ClearSuccess, env.clear())
	require.False(t, env.status().Transferring)
}

func TestServiceReadBlock(t *testing.T) {
	img := testImage(1024, 0xff)
	testCases := []struct {
		name   string
		start  uint32
		n      uint32
		result ReadResult
		data   []byte
	}{
		{"head", 0, 16, ReadSuccess, img[:16]},
		{"max block", 112, MaxBlockSize, ReadSuccess, img[112:224]},
		{"truncated", 1016, 16, ReadSuccess, img[1016:]},
		{"at end", 1024, 16, ReadSuccess, []byte{}},
		{"past end", 1028, 16, ReadInvalidStartAddr, nil},
		{"unaligned start", 2, 16, ReadInvalidStartAddr, nil},
		{"unaligned length", 0, 18, ReadInvalidNumBytes, nil},
		{"too large", 0, MaxBlockSize + 4, ReadInvalidNumBytes, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newOTAPTestEnv(t)
			env.store(img, 4)
			res, data := env.readBlock(tc.start, tc.n)
			require.Equal(t, tc.result, res)
			if tc.data == nil {
				require.Nil(t, data)
				return
			}
			// The stored header carries the transfer sequence.
			if tc.start == 0 {
				require.Equal(t, img[:scratchpad.TagSize], data[:scratchpad.TagSize])
				return
			}
			require.Equal(t, tc.data, data)
		})
	}
}

func TestServiceReadBlockStates(t *testing.T) {
	env := newOTAPTestEnv(t)
	res, _ := env.readBlock(0, 16)
	require.Equal(t, ReadNoScratchpad, res)
	res, _ = env.readBlock(4, 16)
	require.Equal(t, ReadInvalidStartAddr, res)

	require.Equal(t, StartSuccess, env.start(1024, 1))
	res, _ = env.readBlock(0, 16)
	require.Equal(t, ReadInvalidState, res)
	require.Equal(t, ClearSuccess, env.clear())

	env.store(testImage(1024, 0x00), 2)
	res, data := env.readBlock(0, 16)
	require.Equal(t, ReadAccessDenied, res)
	require.Nil(t, data)
}

func TestServiceReadBlockImage(t *testing.T) {
	img, err := image.Build(image.File{
		AreaID:  area.StackID,
		Version: area.Version{Major: 1, Minor: 2},
		Data:    bytes.Repeat([]byte("firmware"), 64),
	})
	require.NoError(t, err)
	env := newOTAPTestEnv(t)
	env.store(img, 6)

	var read []byte
	for off := uint32(0); off < uint32(len(img)); off += MaxBlockSize {
		res, data := env.readBlock(off, MaxBlockSize)
		require.Equal(t, ReadSuccess, res)
		read = append(read, data...)
	}
	require.Len(t, read, len(img))
	require.Equal(t, img[scratchpad.PrefixSize:], read[scratchpad.PrefixSize:])
	parsed, err := image.Parse(read)
	require.NoError(t, err)
	require.False(t, parsed.IsAuthenticated())
}

func TestServiceRequestUpdate(t *testing.T) {
	env := newOTAPTestEnv(t)
	loop := fx.NewLoopWithClock(env.clock)
	loop.Add(env.service)
	env.store(testImage(512, 0xff), 7)

	require.Equal(t, RemoteInvalidState, env.requestUpdate(8, time.Minute))
	require.Zero(t, env.service.UpdateTimeout())

	require.Equal(t, RemoteSuccess, env.requestUpdate(7, 2*time.Minute))
	require.Equal(t, 2*time.Minute, env.service.UpdateTimeout())
	require.Equal(t, scratchpad.StoredProcess, env.status().Stored.Type)

	env.clock.Advance(time.Minute)
	loop.Step(context.Background())
	require.Zero(t, env.reboots)
	require.Equal(t, time.Minute, env.service.UpdateTimeout())

	env.clock.Advance(time.Minute)
	loop.Step(context.Background())
	require.Equal(t, 1, env.reboots)
	require.Zero(t, env.service.UpdateTimeout())

	env.clock.Advance(time.Hour)
	loop.Step(context.Background())
	require.Equal(t, 1, env.reboots)
}

func TestServiceClearCancelsUpdate(t *testing.T) {
	env := newOTAPTestEnv(t)
	env.store(testImage(512, 0xff), 7)
	require.Equal(t, RemoteSuccess, env.requestUpdate(7, time.Minute))
	require.Equal(t, ClearSuccess, env.clear())
	require.Zero(t, env.service.UpdateTimeout())
}
