// Package mesh carries messages between nodes. Transports only move
// opaque packets; the Pipe adds addressing on top of them.
package mesh

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	fx "github.com/robotalks/meshota/pkg/framework"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Address identifies a node on the mesh.
type Address uint32

const (
	// Unspecified is the zero address, never assigned to a node.
	Unspecified Address = 0
	// Broadcast reaches every node.
	Broadcast Address = 0xffffffff
)

// String implements fmt.Stringer.
func (a Address) String() string {
	if a == Broadcast {
		return "broadcast"
	}
	return strconv.FormatUint(uint64(a), 10)
}

// IsBroadcast tells whether a is the broadcast address.
func (a Address) IsBroadcast() bool {
	return a == Broadcast
}

// Accepts tells whether a packet for dst should be delivered to a.
func (a Address) Accepts(dst Address) bool {
	return dst == a || dst == Broadcast
}

// ParseAddress parses a decimal or 0x prefixed address, or "broadcast".
func ParseAddress(s string) (Address, error) {
	if strings.EqualFold(s, "broadcast") {
		return Broadcast, nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return Unspecified, fmt.Errorf("invalid address %q: %v", s, err)
	}
	return Address(v), nil
}

// Reply is a message received in response to a request.
type Reply struct {
	Msg      fx.Message
	Source   Address
	HopCount uint32
	// TravelTime is how long the reply spent between being queued by
	// its source and being received here.
	TravelTime time.Duration
}

// Result is the outcome of a request. A unicast request resolves with
// its first reply; a broadcast request with all replies collected until
// it expires.
type Result struct {
	Replies []Reply
	Err     error
}

// Future is the future of a sent request.
type Future interface {
	// Sequence identifies the request.
	Sequence() uint32
	ResultChan() <-chan Result
}

// Command represents a received request to be answered.
type Command interface {
	Msg() fx.Message
	Source() Address
	Done(fx.Message) error
}

// CommandMsg wraps a Command as a Message posted to the loop.
type CommandMsg struct {
	Command Command
}

// NewMessage implements Message.
func (m *CommandMsg) NewMessage() fx.Message { return &CommandMsg{} }
