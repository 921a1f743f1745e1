package mesh

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	xws "golang.org/x/net/websocket"

	"github.com/robotalks/meshota/pkg/mesh/stream"
	"github.com/robotalks/meshota/pkg/mesh/websocket"
	"github.com/robotalks/meshota/pkg/msgs"
)

// Hub relays packets between peers connected over TCP or websocket.
// Every relayed packet counts one hop. The hub learns which addresses
// are behind each peer from the packet sources, and floods packets for
// unknown destinations.
type Hub struct {
	lock   sync.RWMutex
	peers  map[*hubPeer]struct{}
	routes map[Address]*hubPeer
}

type hubPeer struct {
	rw   PacketReadWriter
	name string
	lock sync.Mutex
}

func (p *hubPeer) write(pkt []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.rw.WritePacket(pkt)
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{
		peers:  make(map[*hubPeer]struct{}),
		routes: make(map[Address]*hubPeer),
	}
}

// Peers is the number of connected peers.
func (h *Hub) Peers() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.peers)
}

// Serve relays packets read from rw until it fails.
func (h *Hub) Serve(name string, rw PacketReadWriter) error {
	peer := &hubPeer{rw: rw, name: name}
	h.lock.Lock()
	h.peers[peer] = struct{}{}
	h.lock.Unlock()
	glog.Infof("hub: peer %s connected", name)
	defer func() {
		h.lock.Lock()
		delete(h.peers, peer)
		for addr, p := range h.routes {
			if p == peer {
				delete(h.routes, addr)
			}
		}
		h.lock.Unlock()
		glog.Infof("hub: peer %s disconnected", name)
	}()
	for {
		pkt, err := rw.ReadPacket()
		if err != nil {
			return err
		}
		h.relay(peer, pkt)
	}
}

// ServeListener accepts TCP peers until ctx is done.
func (h *Hub) ServeListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go func() {
			defer conn.Close()
			h.Serve(conn.RemoteAddr().String(), stream.New(conn))
		}()
	}
}

// WebsocketHandler serves websocket peers.
func (h *Hub) WebsocketHandler() http.Handler {
	return xws.Handler(func(conn *xws.Conn) {
		defer conn.Close()
		h.Serve(conn.Request().RemoteAddr, websocket.New(conn))
	})
}

func (h *Hub) relay(from *hubPeer, pkt []byte) {
	typed, err := msgs.DecodeTyped(pkt)
	if err != nil {
		glog.Warningf("hub: drop malformed packet from %s: %v", from.name, err)
		return
	}
	typed.HopCount++
	out, err := typed.Encode()
	if err != nil {
		glog.Warningf("hub: re-encode packet failed: %v", err)
		return
	}
	src, dst := Address(typed.Source), Address(typed.Destination)

	h.lock.Lock()
	if src != Unspecified && !src.IsBroadcast() {
		h.routes[src] = from
	}
	var targets []*hubPeer
	if p, ok := h.routes[dst]; ok && !dst.IsBroadcast() {
		if p != from {
			targets = append(targets, p)
		}
	} else {
		for p := range h.peers {
			if p != from {
				targets = append(targets, p)
			}
		}
	}
	h.lock.Unlock()

	glog.V(2).Infof("hub: %s -> %s via %d peers", src, dst, len(targets))
	for _, p := range targets {
		if err := p.write(out); err != nil {
			glog.Warningf("hub: write to %s failed: %v", p.name, err)
		}
	}
}
