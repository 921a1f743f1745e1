package mesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/msgs"
)

type meshTestNode struct {
	port *Port
	conn *Conn
	loop *fx.Loop
}

type meshTestEnv struct {
	t       *testing.T
	clock   *fx.ManualClock
	network *Network
	nodes   map[Address]*meshTestNode
}

func newMeshTestEnv(t *testing.T) *meshTestEnv {
	clock := fx.NewManualClock(time.Unix(1000, 0))
	network := NewNetwork(clock)
	network.HopDelay = 100 * time.Millisecond
	return &meshTestEnv{t: t, clock: clock, network: network, nodes: make(map[Address]*meshTestNode)}
}

func (e *meshTestEnv) add(addr Address, answer bool) *meshTestNode {
	n := &meshTestNode{port: e.network.Attach(addr), loop: fx.NewLoopWithClock(e.clock)}
	n.conn = NewConn(n.port, addr)
	n.loop.Add(n.conn)
	if answer {
		n.loop.AddController(fx.PrLvHandle, fx.ControlFunc(func(cc fx.ControlContext) error {
			cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
				cmd, ok := mctx.CurrentMessage().(*CommandMsg)
				if !ok {
					return
				}
				if _, ok := cmd.Command.Msg().(*msgs.RemoteStatusReq); ok {
					mctx.MessageTaken()
					ind := &msgs.RemoteStatusInd{}
					ind.Seq = uint32(addr)
					require.NoError(e.t, cmd.Command.Done(ind))
				}
			}))
			return nil
		}))
	}
	n.loop.Add(&UnsupportedCommands{})
	e.nodes[addr] = n
	return n
}

// step advances the clock, hands delivered packets to the nodes and
// runs one iteration of every loop.
func (e *meshTestEnv) step(d time.Duration) {
	e.clock.Advance(d)
	e.network.Deliver()
	for _, n := range e.nodes {
		for {
			pkt, ok := n.port.TryReadPacket()
			if !ok {
				break
			}
			require.NoError(e.t, n.conn.HandlePacket(context.Background(), pkt))
		}
	}
	for _, n := range e.nodes {
		n.loop.Step(context.Background())
	}
}

func pollResult(f Future) (Result, bool) {
	select {
	case r := <-f.ResultChan():
		return r, true
	default:
		return Result{}, false
	}
}

func TestConnUnicastRequest(t *testing.T) {
	env := newMeshTestEnv(t)
	a := env.add(1, false)
	env.add(2, true)
	env.network.SetHops(1, 2, 3)

	f := a.conn.Request(2, &msgs.RemoteStatusReq{}, time.Second)
	require.NotZero(t, f.Sequence())
	env.step(300 * time.Millisecond)
	_, ok := pollResult(f)
	require.False(t, ok)
	env.step(300 * time.Millisecond)
	r, ok := pollResult(f)
	require.True(t, ok)
	require.NoError(t, r.Err)
	require.Len(t, r.Replies, 1)
	reply := r.Replies[0]
	require.Equal(t, Address(2), reply.Source)
	require.Equal(t, uint32(3), reply.HopCount)
	require.Equal(t, 300*time.Millisecond, reply.TravelTime)
	require.Equal(t, uint32(2), reply.Msg.(*msgs.RemoteStatusInd).Seq)
	require.Zero(t, a.conn.Pending())
}

func TestConnRequestTimeout(t *testing.T) {
	env := newMeshTestEnv(t)
	a := env.add(1, false)
	env.add(2, false)

	f := a.conn.Request(9, &msgs.RemoteStatusReq{}, 2*time.Second)
	env.step(time.Second)
	_, ok := pollResult(f)
	require.False(t, ok)
	env.step(999 * time.Millisecond)
	_, ok = pollResult(f)
	require.False(t, ok)
	env.step(time.Millisecond)
	r, ok := pollResult(f)
	require.True(t, ok)
	require.Equal(t, ErrTimeout, r.Err)
	require.Empty(t, r.Replies)
}

func TestConnMixedTimeouts(t *testing.T) {
	env := newMeshTestEnv(t)
	a := env.add(1, false)
	env.add(2, true)
	env.add(3, true)

	long := a.conn.Request(9, &msgs.RemoteStatusReq{}, 10*time.Second)
	short := a.conn.Request(8, &msgs.RemoteStatusReq{}, 2*time.Second)
	bcast := a.conn.Request(Broadcast, &msgs.RemoteStatusReq{}, time.Second)
	middle := a.conn.Request(7, &msgs.RemoteStatusReq{}, 5*time.Second)
	require.Equal(t, 4, a.conn.Pending())

	for i := 0; i < 10; i++ {
		env.step(100 * time.Millisecond)
	}
	_, ok := pollResult(short)
	require.False(t, ok)
	r, ok := pollResult(bcast)
	require.True(t, ok, "broadcast ends at its own timeout")
	require.NoError(t, r.Err)
	require.Len(t, r.Replies, 2)

	env.step(time.Second)
	r, ok = pollResult(short)
	require.True(t, ok)
	require.Equal(t, ErrTimeout, r.Err)
	require.Empty(t, r.Replies)
	_, ok = pollResult(middle)
	require.False(t, ok)

	env.step(3 * time.Second)
	r, ok = pollResult(middle)
	require.True(t, ok)
	require.Equal(t, ErrTimeout, r.Err)
	_, ok = pollResult(long)
	require.False(t, ok)
	require.Equal(t, 1, a.conn.Pending())

	env.step(5 * time.Second)
	r, ok = pollResult(long)
	require.True(t, ok)
	require.Equal(t, ErrTimeout, r.Err)
	require.Zero(t, a.conn.Pending())
}

func TestConnBroadcastCollects(t *testing.T) {
	env := newMeshTestEnv(t)
	a := env.add(1, false)
	env.add(2, true)
	env.add(3, true)
	env.network.SetHops(1, 3, 2)

	f := a.conn.Request(Broadcast, &msgs.RemoteStatusReq{}, time.Second)
	for i := 0; i < 5; i++ {
		env.step(100 * time.Millisecond)
	}
	_, ok := pollResult(f)
	require.False(t, ok, "broadcast waits for the timeout")
	for i := 0; i < 5; i++ {
		env.step(100 * time.Millisecond)
	}
	r, ok := pollResult(f)
	require.True(t, ok)
	require.NoError(t, r.Err)
	require.Len(t, r.Replies, 2)
	hops := map[Address]uint32{}
	for _, reply := range r.Replies {
		hops[reply.Source] = reply.HopCount
	}
	require.Equal(t, map[Address]uint32{2: 1, 3: 2}, hops)
}

func TestConnUnsupportedCommand(t *testing.T) {
	env := newMeshTestEnv(t)
	a := env.add(1, false)
	env.add(2, false)

	f := a.conn.Request(2, &msgs.RemoteUpdateReq{}, time.Second)
	for i := 0; i < 3; i++ {
		env.step(100 * time.Millisecond)
	}
	r, ok := pollResult(f)
	require.True(t, ok)
	require.Error(t, r.Err)
	require.IsType(t, &msgs.CommandErr{}, r.Err)
}

func TestPipeFiltersDestination(t *testing.T) {
	var handled []uint32
	p := &Pipe{Local: 5, Handler: msgs.HandleTypedMsgFunc(func(_ context.Context, _ fx.Message, typed *msgs.Typed) error {
		handled = append(handled, typed.Destination)
		return nil
	})}
	packet := func(src, dst Address) []byte {
		typed, err := msgs.TypedFrom(&msgs.RemoteStatusReq{})
		require.NoError(t, err)
		typed.Source, typed.Destination = uint32(src), uint32(dst)
		pkt, err := typed.Encode()
		require.NoError(t, err)
		return pkt
	}
	ctx := context.Background()
	require.NoError(t, p.HandlePacket(ctx, packet(1, 5)))
	require.NoError(t, p.HandlePacket(ctx, packet(1, 6)))
	require.NoError(t, p.HandlePacket(ctx, packet(1, Broadcast)))
	require.NoError(t, p.HandlePacket(ctx, packet(5, Broadcast)))
	require.NoError(t, p.HandlePacket(ctx, []byte{0xff, 0xff}))
	require.Equal(t, []uint32{5, uint32(Broadcast)}, handled)
}

func TestParseAddress(t *testing.T) {
	testCases := []struct {
		in   string
		addr Address
		ok   bool
	}{
		{"12", 12, true},
		{"0x10", 16, true},
		{"broadcast", Broadcast, true},
		{"x", 0, false},
		{"4294967296", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			addr, err := ParseAddress(tc.in)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.addr, addr)
		})
	}
}
