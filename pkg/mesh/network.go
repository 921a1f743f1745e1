package mesh

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/msgs"
)

// Network is an in-memory mesh for simulations and tests. Every packet
// is delayed by HopDelay per hop between source and destination and
// its hop count is increased accordingly.
type Network struct {
	Clock       fx.Clock
	HopDelay    time.Duration
	DefaultHops uint32
	// QueueSize bounds the undelivered packets per port; excess packets
	// are dropped like a congested radio would.
	QueueSize int

	lock    sync.Mutex
	ports   map[Address]*Port
	hops    map[[2]Address]uint32
	pending []delivery
}

type delivery struct {
	at   time.Time
	port *Port
	pkt  []byte
}

// Default parameters of a Network.
const (
	DefaultHopDelay  = 20 * time.Millisecond
	DefaultQueueSize = 64
)

// NewNetwork creates an empty Network.
func NewNetwork(clock fx.Clock) *Network {
	return &Network{
		Clock:       fx.ClockOrSystem(clock),
		HopDelay:    DefaultHopDelay,
		DefaultHops: 1,
		QueueSize:   DefaultQueueSize,
		ports:       make(map[Address]*Port),
		hops:        make(map[[2]Address]uint32),
	}
}

// SetHops sets the hop distance between two nodes.
func (n *Network) SetHops(a, b Address, hops uint32) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.hops[hopKey(a, b)] = hops
}

// Hops is the hop distance between two nodes.
func (n *Network) Hops(a, b Address) uint32 {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.hopsLocked(a, b)
}

// Attach connects a node. Attaching an address twice replaces the
// previous port.
func (n *Network) Attach(addr Address) *Port {
	p := &Port{
		network:  n,
		addr:     addr,
		packetCh: make(chan []byte, n.QueueSize),
	}
	n.lock.Lock()
	if old := n.ports[addr]; old != nil {
		old.closeLocked()
	}
	n.ports[addr] = p
	n.lock.Unlock()
	return p
}

// Deliver hands over all packets due by now and returns how many.
func (n *Network) Deliver() int {
	now := n.Clock.Now()
	n.lock.Lock()
	defer n.lock.Unlock()
	var count int
	remains := n.pending[:0]
	for _, d := range n.pending {
		if d.at.After(now) {
			remains = append(remains, d)
			continue
		}
		count++
		if d.port.closed {
			continue
		}
		select {
		case d.port.packetCh <- d.pkt:
		default:
			glog.Warningf("mesh network: queue of %s full, packet dropped", d.port.addr)
		}
	}
	n.pending = remains
	return count
}

// Run implements Runnable, delivering packets as they become due.
func (n *Network) Run(ctx context.Context) error {
	interval := n.HopDelay / 2
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n.Deliver()
		}
	}
}

func (n *Network) send(from *Port, pkt []byte) error {
	typed, err := msgs.DecodeTyped(pkt)
	if err != nil {
		return err
	}
	dst := Address(typed.Destination)
	now := n.Clock.Now()
	hopCount := typed.HopCount
	n.lock.Lock()
	if from.closed {
		n.lock.Unlock()
		return ErrClosed
	}
	for addr, p := range n.ports {
		if p == from || !addr.Accepts(dst) {
			continue
		}
		hops := n.hopsLocked(from.addr, addr)
		typed.HopCount = hopCount + hops
		out, err := typed.Encode()
		if err != nil {
			n.lock.Unlock()
			return err
		}
		n.pending = append(n.pending, delivery{
			at:   now.Add(time.Duration(hops) * n.HopDelay),
			port: p,
			pkt:  out,
		})
	}
	sort.SliceStable(n.pending, func(i, j int) bool {
		return n.pending[i].at.Before(n.pending[j].at)
	})
	n.lock.Unlock()
	n.Deliver()
	return nil
}

func (n *Network) hopsLocked(a, b Address) uint32 {
	if hops, ok := n.hops[hopKey(a, b)]; ok {
		return hops
	}
	return n.DefaultHops
}

func hopKey(a, b Address) [2]Address {
	if a > b {
		a, b = b, a
	}
	return [2]Address{a, b}
}

// Port is the attachment of one node to a Network. It implements
// PacketReadWriter.
type Port struct {
	network  *Network
	addr     Address
	packetCh chan []byte
	closed   bool
}

// Address is the address the port was attached with.
func (p *Port) Address() Address {
	return p.addr
}

// ReadPacket implements PacketReader.
func (p *Port) ReadPacket() ([]byte, error) {
	pkt, ok := <-p.packetCh
	if !ok {
		return nil, ErrClosed
	}
	return pkt, nil
}

// TryReadPacket returns a delivered packet without blocking.
func (p *Port) TryReadPacket() ([]byte, bool) {
	select {
	case pkt, ok := <-p.packetCh:
		return pkt, ok
	default:
		return nil, false
	}
}

// WritePacket implements PacketWriter.
func (p *Port) WritePacket(pkt []byte) error {
	return p.network.send(p, pkt)
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.network.lock.Lock()
	defer p.network.lock.Unlock()
	if p.network.ports[p.addr] == p {
		delete(p.network.ports, p.addr)
	}
	p.closeLocked()
	return nil
}

func (p *Port) closeLocked() {
	if !p.closed {
		p.closed = true
		close(p.packetCh)
	}
}
