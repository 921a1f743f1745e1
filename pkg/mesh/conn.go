package mesh

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/msgs"
)

// Conn is the attachment of a node to the mesh. It sends requests and
// tracks them until they are answered or expire, and posts requests
// from other nodes to the loop as CommandMsg.
type Conn struct {
	Expiration time.Duration

	pipe     Pipe
	loop     *fx.Loop
	seq      uint32
	requests list.List
	seqMap   map[uint32]*requestFuture
	lock     sync.Mutex
}

// DefaultRequestExpiration is the default expiration expecting a reply.
const DefaultRequestExpiration = 5 * time.Second

// NewConn creates a Conn for the node at local.
func NewConn(rw PacketReadWriter, local Address) *Conn {
	c := &Conn{}
	c.Init(rw, local)
	return c
}

// Init initializes Conn with defaults.
func (c *Conn) Init(rw PacketReadWriter, local Address) {
	c.Expiration = DefaultRequestExpiration
	c.pipe.ReadWriter = rw
	c.pipe.Local = local
	c.pipe.Handler = msgs.HandleTypedMsgFunc(c.handleTypedMsg)
	c.seqMap = make(map[uint32]*requestFuture)
}

// Local is the address of this node.
func (c *Conn) Local() Address {
	return c.pipe.Local
}

// Request sends a command to dst. The returned future resolves with
// the first reply for a unicast destination. For Broadcast, replies
// are collected until the timeout elapses. A request without any reply
// resolves with ErrTimeout. Zero timeout uses Expiration.
func (c *Conn) Request(dst Address, msg fx.Message, timeout time.Duration) Future {
	if timeout <= 0 {
		timeout = c.Expiration
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.seq++
	if c.seq == 0 {
		c.seq++
	}
	f := &requestFuture{
		seq:      c.seq,
		dst:      dst,
		expireAt: c.now().Add(timeout),
		result:   make(chan Result, 1),
	}
	if err := c.pipe.SendCommandMsg(msg, dst, f.seq); err != nil {
		f.result <- Result{Err: err}
		close(f.result)
		return f
	}
	f.elem = c.insertByExpiry(f)
	c.seqMap[f.seq] = f
	return f
}

// insertByExpiry keeps requests ordered by expireAt so purgeExpired can
// stop at the first live one.
func (c *Conn) insertByExpiry(f *requestFuture) *list.Element {
	for elem := c.requests.Back(); elem != nil; elem = elem.Prev() {
		if !elem.Value.(*requestFuture).expireAt.After(f.expireAt) {
			return c.requests.InsertAfter(f, elem)
		}
	}
	return c.requests.PushFront(f)
}

// Pending is the number of outstanding requests.
func (c *Conn) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.requests.Len()
}

// HandlePacket processes a packet received outside the pipe runner.
func (c *Conn) HandlePacket(ctx context.Context, pkt []byte) error {
	return c.pipe.HandlePacket(ctx, pkt)
}

// AddToLoop implements LoopAdder.
func (c *Conn) AddToLoop(l *fx.Loop) {
	c.loop = l
	l.Add(&c.pipe)
	l.AddController(fx.PrLvExpire, fx.ControlFunc(c.purgeExpired))
}

func (c *Conn) now() time.Time {
	return fx.ClockOrSystem(c.pipe.Clock).Now()
}

func (c *Conn) handleTypedMsg(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	if typed.IsEvent() {
		c.post(msg)
		return nil
	}
	if !typed.IsReply() {
		c.post(&CommandMsg{Command: &command{
			seq:  typed.Sequence,
			src:  Address(typed.Source),
			msg:  msg,
			pipe: &c.pipe,
		}})
		return nil
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	f := c.seqMap[typed.Sequence]
	if f == nil {
		return nil
	}
	reply := Reply{
		Msg:        msg,
		Source:     Address(typed.Source),
		HopCount:   typed.HopCount,
		TravelTime: c.now().Sub(typed.SentAt()),
	}
	if f.dst.IsBroadcast() {
		f.replies = append(f.replies, reply)
		return nil
	}
	c.requests.Remove(f.elem)
	delete(c.seqMap, typed.Sequence)
	result := Result{Replies: []Reply{reply}}
	if cmdErr, ok := msg.(*msgs.CommandErr); ok {
		result.Err = cmdErr
	}
	f.result <- result
	close(f.result)
	return nil
}

func (c *Conn) post(msg fx.Message) {
	if c.loop == nil {
		glog.Warningf("mesh %s: not attached to a loop, message dropped", c.Local())
		return
	}
	c.loop.PostMessage(msg)
	c.loop.TriggerNext()
}

func (c *Conn) purgeExpired(cc fx.ControlContext) error {
	now := cc.Time()
	c.lock.Lock()
	defer c.lock.Unlock()
	for c.requests.Len() > 0 {
		elem := c.requests.Front()
		f := elem.Value.(*requestFuture)
		if f.expireAt.After(now) {
			break
		}
		c.requests.Remove(elem)
		delete(c.seqMap, f.seq)
		result := Result{Replies: f.replies}
		if len(f.replies) == 0 {
			result.Err = ErrTimeout
		}
		f.result <- result
		close(f.result)
	}
	return nil
}

type requestFuture struct {
	seq      uint32
	dst      Address
	expireAt time.Time
	elem     *list.Element
	replies  []Reply
	result   chan Result
}

func (f *requestFuture) Sequence() uint32 {
	return f.seq
}

func (f *requestFuture) ResultChan() <-chan Result {
	return f.result
}

type command struct {
	seq  uint32
	src  Address
	msg  fx.Message
	pipe *Pipe
}

func (c *command) Msg() fx.Message {
	return c.msg
}

func (c *command) Source() Address {
	return c.src
}

func (c *command) Done(msg fx.Message) error {
	return c.pipe.SendCommandMsg(msg, c.src, c.seq)
}

// UnsupportedCommands replies left-over commands as unsupported.
type UnsupportedCommands struct {
}

// Control implements Controller.
func (c *UnsupportedCommands) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		if cmdMsg, ok := mctx.CurrentMessage().(*CommandMsg); ok {
			mctx.MessageTaken()
			cmdMsg.Command.Done(msgs.NewCommandErr(msgs.ErrUnsupportedCommand))
		}
	}))
	return nil
}

// AddToLoop implements LoopAdder.
func (c *UnsupportedCommands) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvIdle, c)
}
