package mqtt

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/meshota/pkg/msgs"
)

// Topics relative to the queue prefix.
const (
	BroadcastTopic = "broadcast"
	NodeTopicBase  = "node/"
	// AllTopics matches every mesh packet, used by monitors.
	AllTopics = "#"
)

// BroadcastAddress is the destination published to BroadcastTopic.
const BroadcastAddress uint32 = 0xffffffff

// NodeTopic is the topic a node at addr receives unicast packets on.
func NodeTopic(addr uint32) string {
	return NodeTopicBase + strconv.FormatUint(uint64(addr), 10)
}

// TopicAddress extracts the destination from a mesh topic.
func TopicAddress(topic string) (uint32, error) {
	if topic == BroadcastTopic {
		return BroadcastAddress, nil
	}
	if !strings.HasPrefix(topic, NodeTopicBase) {
		return 0, fmt.Errorf("not a mesh topic: %q", topic)
	}
	v, err := strconv.ParseUint(topic[len(NodeTopicBase):], 10, 32)
	return uint32(v), err
}

// ReadWriter implements PacketReadWriter for one node.
type ReadWriter struct {
	Queue *Queue
	Local uint32

	packetCh chan []byte
}

// NewPacketReadWriter creates the ReadWriter for the node at local.
func NewPacketReadWriter(q *Queue, local uint32) *ReadWriter {
	return &ReadWriter{Queue: q, Local: local, packetCh: make(chan []byte, 16)}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	pkt, ok := <-p.packetCh
	if !ok {
		return nil, io.EOF
	}
	return pkt, nil
}

// WritePacket implements PacketWriter. The topic is chosen from the
// destination in the envelope.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	typed, err := msgs.DecodeTyped(pkt)
	if err != nil {
		return err
	}
	topic := BroadcastTopic
	if typed.Destination != BroadcastAddress {
		topic = NodeTopic(typed.Destination)
	}
	token := p.Queue.Pub(topic, pkt)
	token.Wait()
	return token.Error()
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	own := p.Queue.Sub(NodeTopic(p.Local), Handler(p.handleMsg))
	defer own.Close()
	bcast := p.Queue.Sub(BroadcastTopic, Handler(p.handleMsg))
	defer bcast.Close()
	defer close(p.packetCh)
	<-ctx.Done()
	return ctx.Err()
}

func (p *ReadWriter) handleMsg(topic string, payload []byte) {
	select {
	case p.packetCh <- payload:
	default:
		glog.Warningf("mqtt: packet on %q dropped, reader behind", topic)
	}
}
