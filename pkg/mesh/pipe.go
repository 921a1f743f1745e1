package mesh

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/msgs"
)

// Pipe is a bi-directional pipe for addressed messages over a
// PacketReadWriter. Packets not destined to Local, or sent by Local
// itself, are dropped.
type Pipe struct {
	ReadWriter PacketReadWriter
	Handler    msgs.TypedMsgHandler
	Local      Address
	Clock      fx.Clock

	sendLock sync.Mutex
}

// NewPipe creates a Pipe with given PacketReadWriter.
func NewPipe(rw PacketReadWriter, local Address) *Pipe {
	return &Pipe{ReadWriter: rw, Local: local}
}

// SendCommandMsg sends a message which must be a command.
func (p *Pipe) SendCommandMsg(msg fx.Message, dst Address, seq uint32) error {
	typed, err := msgs.TypedFrom(msg)
	if err != nil {
		panic(err)
	}
	if !typed.IsCommand() {
		panic("message is not a command")
	}
	typed.Sequence = seq
	typed.Destination = uint32(dst)
	return p.SendTyped(typed)
}

// SendEventMsg sends a message which must be an event.
func (p *Pipe) SendEventMsg(msg fx.Message, dst Address) error {
	typed, err := msgs.TypedFrom(msg)
	if err != nil {
		panic(err)
	}
	if !typed.IsEvent() {
		panic("message is not an event")
	}
	typed.Destination = uint32(dst)
	return p.SendTyped(typed)
}

// SendTyped sends a Typed message from Local.
func (p *Pipe) SendTyped(typed *msgs.Typed) error {
	typed.Source = uint32(p.Local)
	typed.HopCount = 0
	typed.Stamp(fx.ClockOrSystem(p.Clock).Now())
	pkt, err := typed.Encode()
	if err != nil {
		return err
	}
	glog.V(2).Infof("mesh %s: send %x seq %d to %s", p.Local, typed.TypeId, typed.Sequence, Address(typed.Destination))
	p.sendLock.Lock()
	defer p.sendLock.Unlock()
	return p.ReadWriter.WritePacket(pkt)
}

// Run implements Runnable.
func (p *Pipe) Run(ctx context.Context) error {
	defer p.Close()
	for {
		pkt, err := p.ReadWriter.ReadPacket()
		if err != nil {
			return err
		}
		if err = p.HandlePacket(ctx, pkt); err != nil {
			return err
		}
	}
}

// HandlePacket decodes and dispatches a single packet.
func (p *Pipe) HandlePacket(ctx context.Context, pkt []byte) error {
	typed, err := msgs.DecodeTyped(pkt)
	if err != nil {
		glog.Warningf("mesh %s: drop malformed packet: %v", p.Local, err)
		return nil
	}
	if Address(typed.Source) == p.Local || !p.Local.Accepts(Address(typed.Destination)) {
		return nil
	}
	glog.V(2).Infof("mesh %s: recv %x seq %d from %s, %d hops",
		p.Local, typed.TypeId, typed.Sequence, Address(typed.Source), typed.HopCount)
	msg, err := typed.Decode()
	if err != nil {
		// If it's a request, simply replies a CommandErr.
		if typed.IsCommand() && !typed.IsReply() {
			return p.SendCommandMsg(msgs.NewCommandErr(err), Address(typed.Source), typed.Sequence)
		}
		// otherwise, simply ignored.
		return nil
	}
	if h := p.Handler; h != nil {
		return h.HandleTypedMsg(ctx, msg, typed)
	}
	return nil
}

// Close implements Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (p *Pipe) AddToLoop(loop *fx.Loop) {
	if p.Clock == nil {
		p.Clock = loop.Clock
	}
	if adder, ok := p.ReadWriter.(fx.LoopAdder); ok {
		loop.Add(adder)
	} else if runnable, ok := p.ReadWriter.(fx.Runnable); ok {
		loop.AddRunnable(runnable)
	}
	loop.AddRunnable(p)
}
