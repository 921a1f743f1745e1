package otap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/meshota/pkg/mesh"
	"github.com/robotalks/meshota/pkg/otap"
)

func TestParseTarget(t *testing.T) {
	testCases := []struct {
		name   string
		args   []string
		target otap.Target
		usage  bool
		fails  bool
	}{
		{name: "propagate", args: []string{"5", "0x1234", "propagate-only"},
			target: otap.Target{Sequence: 5, CRC: 0x1234, Action: otap.ActionPropagateOnly}},
		{name: "numeric action", args: []string{"7", "100", "2"},
			target: otap.Target{Sequence: 7, CRC: 100, Action: otap.ActionPropagateAndProcess}},
		{name: "delayed", args: []string{"9", "0xbeef", "propagate-and-process-with-delay", "3h"},
			target: otap.Target{Sequence: 9, CRC: 0xbeef, Action: otap.ActionPropagateAndProcessDelayed,
				Param: uint8(otap.NewDelay(3, otap.DelayHours))}},
		{name: "too few", args: []string{"5", "0x1234"}, usage: true},
		{name: "too many", args: []string{"5", "1", "legacy", "1m", "x"}, usage: true},
		{name: "seq out of range", args: []string{"256", "1", "legacy"}, fails: true},
		{name: "crc out of range", args: []string{"1", "0x10000", "legacy"}, fails: true},
		{name: "unknown action", args: []string{"1", "1", "deploy"}, fails: true},
		{name: "bad delay", args: []string{"1", "1", "legacy", "3x"}, fails: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target, err := parseTarget(tc.args)
			switch {
			case tc.usage:
				require.Equal(t, errUsage, err)
			case tc.fails:
				require.Error(t, err)
				require.NotEqual(t, errUsage, err)
			default:
				require.NoError(t, err)
				require.Equal(t, tc.target, target)
			}
		})
	}
}

func TestParseRemoteUpdate(t *testing.T) {
	testCases := []struct {
		name  string
		args  []string
		want  remoteUpdateArgs
		usage bool
		fails bool
	}{
		{name: "unicast", args: []string{"0x10", "7", "30s"},
			want: remoteUpdateArgs{addr: 0x10, seq: 7, delay: 30 * time.Second}},
		{name: "broadcast now", args: []string{"broadcast", "1", "0s"},
			want: remoteUpdateArgs{addr: mesh.Broadcast, seq: 1}},
		{name: "missing delay", args: []string{"3", "1"}, usage: true},
		{name: "bad address", args: []string{"node", "1", "1s"}, fails: true},
		{name: "bad seq", args: []string{"3", "-1", "1s"}, fails: true},
		{name: "bad delay", args: []string{"3", "1", "soon"}, fails: true},
		{name: "negative delay", args: []string{"3", "1", "-5s"}, fails: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseRemoteUpdate(tc.args)
			switch {
			case tc.usage:
				require.Equal(t, errUsage, err)
			case tc.fails:
				require.Error(t, err)
				require.NotEqual(t, errUsage, err)
			default:
				require.NoError(t, err)
				require.Equal(t, tc.want, got)
			}
		})
	}
}

func TestParseRemoteStatus(t *testing.T) {
	addr, wait, err := parseRemoteStatus([]string{"3"}, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, mesh.Address(3), addr)
	require.Equal(t, 5*time.Second, wait)

	addr, wait, err = parseRemoteStatus([]string{"broadcast", "1500ms"}, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, mesh.Broadcast, addr)
	require.Equal(t, 1500*time.Millisecond, wait)

	_, _, err = parseRemoteStatus(nil, time.Second)
	require.Equal(t, errUsage, err)
	_, _, err = parseRemoteStatus([]string{"3", "later"}, time.Second)
	require.Error(t, err)
}

func TestParseUpload(t *testing.T) {
	fn, seq, err := parseUpload([]string{"fw.img", "0x09"})
	require.NoError(t, err)
	require.Equal(t, "fw.img", fn)
	require.Equal(t, uint8(9), seq)

	_, _, err = parseUpload([]string{"fw.img"})
	require.Equal(t, errUsage, err)
	_, _, err = parseUpload([]string{"fw.img", "x"})
	require.Error(t, err)
	require.NotEqual(t, errUsage, err)
}

func TestParseRead(t *testing.T) {
	testCases := []struct {
		args  []string
		off   uint32
		n     uint8
		fails bool
	}{
		{args: []string{"0x100"}, off: 0x100, n: otap.MaxBlockSize},
		{args: []string{"16", "32"}, off: 16, n: 32},
		{args: []string{"16", "300"}, fails: true},
		{args: []string{"-1"}, fails: true},
		{args: []string{}, fails: true},
	}
	for _, tc := range testCases {
		off, n, err := parseRead(tc.args)
		if tc.fails {
			require.Error(t, err, "%v", tc.args)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.off, off)
		require.Equal(t, tc.n, n)
	}
}
