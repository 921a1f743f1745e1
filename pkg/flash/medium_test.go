package flash

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/meshota/pkg/framework"
)

func testTiming() Timing {
	return Timing{
		FlashSize:       4 * 1024,
		WritePageSize:   256,
		EraseSectorSize: 1024,
		WriteAlignment:  4,
		PageWriteTime:   2 * time.Millisecond,
		ByteWriteTime:   10 * time.Microsecond,
		SectorEraseTime: 50 * time.Millisecond,
	}
}

type mediumTestEnv struct {
	t      *testing.T
	clock  *fx.ManualClock
	medium *Medium
}

func newMediumTestEnv(t *testing.T) *mediumTestEnv {
	clock := fx.NewManualClock(time.Unix(1000, 0))
	return &mediumTestEnv{
		t:      t,
		clock:  clock,
		medium: NewMemoryMedium("test", testTiming(), clock),
	}
}

func (e *mediumTestEnv) settle() {
	e.clock.Advance(time.Second)
	require.False(e.t, e.medium.IsBusy())
}

func (e *mediumTestEnv) write(addr uint32, data []byte) {
	var done bool
	require.NoError(e.t, e.medium.StartWrite(addr, data, func(err error) {
		require.NoError(e.t, err)
		done = true
	}))
	e.settle()
	require.True(e.t, done)
}

func (e *mediumTestEnv) read(addr uint32, n int) []byte {
	buf := make([]byte, n)
	var done bool
	require.NoError(e.t, e.medium.StartRead(addr, buf, func(err error) {
		require.NoError(e.t, err)
		done = true
	}))
	e.settle()
	require.True(e.t, done)
	return buf
}

func TestMediumParams(t *testing.T) {
	testCases := []struct {
		name string
		fn   func(m *Medium) error
	}{
		{"read empty", func(m *Medium) error { return m.StartRead(0, nil, nil) }},
		{"read out of range", func(m *Medium) error { return m.StartRead(4090, make([]byte, 8), nil) }},
		{"write empty", func(m *Medium) error { return m.StartWrite(0, nil, nil) }},
		{"write unaligned address", func(m *Medium) error { return m.StartWrite(2, make([]byte, 4), nil) }},
		{"write unaligned length", func(m *Medium) error { return m.StartWrite(0, make([]byte, 6), nil) }},
		{"write larger than page", func(m *Medium) error { return m.StartWrite(0, make([]byte, 260), nil) }},
		{"write across page", func(m *Medium) error { return m.StartWrite(252, make([]byte, 8), nil) }},
		{"write out of range", func(m *Medium) error { return m.StartWrite(4096, make([]byte, 4), nil) }},
		{"erase unaligned", func(m *Medium) error { _, _, err := m.StartErase(512, 1, nil); return err }},
		{"erase nothing", func(m *Medium) error { _, _, err := m.StartErase(0, 0, nil); return err }},
		{"erase out of range", func(m *Medium) error { _, _, err := m.StartErase(3072, 2, nil); return err }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newMediumTestEnv(t)
			require.Equal(t, ErrParam, tc.fn(env.medium))
			require.False(t, env.medium.IsBusy())
		})
	}
}

func TestMediumBusy(t *testing.T) {
	env := newMediumTestEnv(t)
	var calls int
	require.NoError(t, env.medium.StartWrite(0, []byte{1, 2, 3, 4}, func(err error) {
		require.NoError(t, err)
		calls++
	}))
	require.True(t, env.medium.IsBusy())
	require.Equal(t, ErrBusy, env.medium.StartRead(0, make([]byte, 4), nil))
	_, _, err := env.medium.StartErase(0, 1, nil)
	require.Equal(t, ErrBusy, err)

	env.clock.Advance(39 * time.Microsecond)
	require.True(t, env.medium.IsBusy())
	require.Equal(t, 0, calls)
	env.clock.Advance(time.Microsecond)
	require.False(t, env.medium.IsBusy())
	require.Equal(t, 1, calls)
	require.False(t, env.medium.IsBusy())
	require.Equal(t, 1, calls)
}

func TestMediumWriteAndsBits(t *testing.T) {
	env := newMediumTestEnv(t)
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, env.read(0, 4))
	env.write(0, []byte{0xf0, 0x0f, 0xaa, 0xff})
	env.write(0, []byte{0x3c, 0x3c, 0xff, 0x00})
	require.Equal(t, []byte{0x30, 0x0c, 0xaa, 0x00}, env.read(0, 4))
}

func TestMediumPartialErase(t *testing.T) {
	env := newMediumTestEnv(t)
	env.medium.MaxEraseSectors = 1
	for addr := uint32(0); addr < 4096; addr += 256 {
		env.write(addr, bytes.Repeat([]byte{0x55}, 256))
	}

	sector, remaining := uint32(1024), uint32(2)
	var rounds int
	for remaining > 0 {
		next, left, err := env.medium.StartErase(sector, remaining, nil)
		require.NoError(t, err)
		require.Equal(t, sector+1024, next)
		require.Equal(t, remaining-1, left)
		sector, remaining = next, left
		env.clock.Advance(49 * time.Millisecond)
		require.True(t, env.medium.IsBusy())
		env.settle()
		rounds++
	}
	require.Equal(t, 2, rounds)
	require.Equal(t, bytes.Repeat([]byte{0x55}, 1024), env.read(0, 1024))
	require.Equal(t, bytes.Repeat([]byte{0xff}, 1024), env.read(1024, 1024))
	require.Equal(t, bytes.Repeat([]byte{0xff}, 1024), env.read(2048, 1024))
	require.Equal(t, bytes.Repeat([]byte{0x55}, 1024), env.read(3072, 1024))
}

func TestMediumCallbackChaining(t *testing.T) {
	env := newMediumTestEnv(t)
	var order []string
	require.NoError(t, env.medium.StartWrite(0, []byte{1, 1, 1, 1}, func(err error) {
		order = append(order, "first")
		require.NoError(t, env.medium.StartWrite(4, []byte{2, 2, 2, 2}, func(err error) {
			order = append(order, "second")
		}))
	}))
	env.clock.Advance(time.Second)
	require.True(t, env.medium.IsBusy(), "chained operation keeps the medium busy")
	env.settle()
	require.Equal(t, []string{"first", "second"}, order)
	require.Equal(t, []byte{1, 1, 1, 1, 2, 2, 2, 2}, env.read(0, 8))
}

func TestMediumLoopPolling(t *testing.T) {
	env := newMediumTestEnv(t)
	loop := fx.NewLoopWithClock(env.clock)
	loop.Add(env.medium)
	var done bool
	require.NoError(t, env.medium.StartWrite(0, []byte{0, 0, 0, 0}, func(error) { done = true }))
	loop.Step(context.Background())
	require.False(t, done)
	env.clock.Advance(time.Millisecond)
	loop.Step(context.Background())
	require.True(t, done)
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	s, err := OpenFileStorage(path, 2048)
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = s.ReadAt(buf, 2044)
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, buf)
	_, err = s.WriteAt([]byte{1, 2, 3, 4}, 100)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenFileStorage(path, 2048)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.ReadAt(buf, 100)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, buf)
	require.Equal(t, int64(2048), s.Size())
}

func TestTimingValidate(t *testing.T) {
	require.NoError(t, InternalProfile(512*1024).Validate())
	require.NoError(t, ExternalProfile(1024*1024).Validate())
	bad := testTiming()
	bad.FlashSize = 1000
	require.Equal(t, ErrParam, bad.Validate())
	require.Equal(t, time.Duration(0), testTiming().Instant().EraseDuration(4))
	require.Equal(t, uint32(4), testTiming().NumSectors())
}
