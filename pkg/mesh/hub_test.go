package mesh

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/meshota/pkg/mesh/stream"
	"github.com/robotalks/meshota/pkg/msgs"
)

type hubTestPeer struct {
	rw      *stream.ReadWriter
	packets chan *msgs.Typed
}

func connectHubPeer(t *testing.T, hub *Hub, name string) *hubTestPeer {
	client, server := net.Pipe()
	go hub.Serve(name, stream.New(server))
	p := &hubTestPeer{rw: stream.New(client), packets: make(chan *msgs.Typed, 8)}
	go func() {
		for {
			pkt, err := p.rw.ReadPacket()
			if err != nil {
				close(p.packets)
				return
			}
			typed, err := msgs.DecodeTyped(pkt)
			if err == nil {
				p.packets <- typed
			}
		}
	}()
	t.Cleanup(func() { p.rw.Close() })
	return p
}

func (p *hubTestPeer) send(t *testing.T, src, dst Address) {
	typed, err := msgs.TypedFrom(&msgs.RemoteStatusReq{})
	require.NoError(t, err)
	typed.Source, typed.Destination = uint32(src), uint32(dst)
	pkt, err := typed.Encode()
	require.NoError(t, err)
	require.NoError(t, p.rw.WritePacket(pkt))
}

func (p *hubTestPeer) expect(t *testing.T) *msgs.Typed {
	select {
	case typed := <-p.packets:
		return typed
	case <-time.After(time.Second):
		t.Fatal("no packet relayed")
	}
	return nil
}

func (p *hubTestPeer) expectNone(t *testing.T) {
	select {
	case typed := <-p.packets:
		t.Fatalf("unexpected packet from %d", typed.Source)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRelay(t *testing.T) {
	hub := NewHub()
	a := connectHubPeer(t, hub, "a")
	b := connectHubPeer(t, hub, "b")
	c := connectHubPeer(t, hub, "c")
	for deadline := time.Now().Add(time.Second); hub.Peers() < 3; {
		require.True(t, time.Now().Before(deadline), "peers not registered")
		time.Sleep(5 * time.Millisecond)
	}

	// unknown destination is flooded
	a.send(t, 1, 2)
	typed := b.expect(t)
	require.Equal(t, uint32(1), typed.HopCount)
	c.expect(t)

	// b announces itself, unicast then only reaches b
	b.send(t, 2, Broadcast)
	a.expect(t)
	c.expect(t)
	a.send(t, 1, 2)
	b.expect(t)
	c.expectNone(t)
}
