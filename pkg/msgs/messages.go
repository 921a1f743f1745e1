// Package msgs defines the messages exchanged between nodes over the
// mesh and their wire envelope.
package msgs

//go:generate protoc --go_out=. msgs.proto

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/meshota/pkg/framework"
)

// CommandErr is the generic message representing command error.
type CommandErr struct {
	CommandErrPb
}

// NewCommandErr creates a CommandErr from an error.
func NewCommandErr(err error) *CommandErr {
	return NewCommandErrFromMsg(err.Error())
}

// NewCommandErrFromMsg creates a CommandErr.
func NewCommandErrFromMsg(message string) *CommandErr {
	return &CommandErr{CommandErrPb: CommandErrPb{Message: message}}
}

// NewMessage implements Message.
func (m *CommandErr) NewMessage() fx.Message { return &CommandErr{} }

// TypeID implements SerializableMessage.
func (m *CommandErr) TypeID() uint32 { return CommandErrTypeID }

// Serializable implements SerializableMessage.
func (m *CommandErr) Serializable() proto.Message { return &m.CommandErrPb }

// Error implements error.
func (m *CommandErr) Error() string { return m.Message }

// RemoteStatusReq queries the OTAP status of remote nodes.
type RemoteStatusReq struct {
	RemoteStatusReqPb
}

// NewMessage implements Message.
func (m *RemoteStatusReq) NewMessage() fx.Message { return &RemoteStatusReq{} }

// TypeID implements SerializableMessage.
func (m *RemoteStatusReq) TypeID() uint32 { return RemoteStatusReqTypeID }

// Serializable implements SerializableMessage.
func (m *RemoteStatusReq) Serializable() proto.Message { return &m.RemoteStatusReqPb }

// RemoteUpdateReq requests remote nodes to install a stored scratchpad.
type RemoteUpdateReq struct {
	RemoteUpdateReqPb
}

// NewMessage implements Message.
func (m *RemoteUpdateReq) NewMessage() fx.Message { return &RemoteUpdateReq{} }

// TypeID implements SerializableMessage.
func (m *RemoteUpdateReq) TypeID() uint32 { return RemoteUpdateReqTypeID }

// Serializable implements SerializableMessage.
func (m *RemoteUpdateReq) Serializable() proto.Message { return &m.RemoteUpdateReqPb }

// RemoteStatusInd answers both RemoteStatusReq and RemoteUpdateReq.
type RemoteStatusInd struct {
	RemoteStatusIndPb
}

// NewMessage implements Message.
func (m *RemoteStatusInd) NewMessage() fx.Message { return &RemoteStatusInd{} }

// TypeID implements SerializableMessage.
func (m *RemoteStatusInd) TypeID() uint32 { return RemoteStatusIndTypeID }

// Serializable implements SerializableMessage.
func (m *RemoteStatusInd) Serializable() proto.Message { return &m.RemoteStatusIndPb }

// TypeID Groups
const (
	GroupCommand uint32 = 0x00000000
	GroupOTAP    uint32 = 0x00010000
	GroupCustom  uint32 = 0x7f000000 // base group id for custom messages.
)

// TypeIDs
const (
	CommandErrTypeID      uint32 = GroupCommand | TypeIDMaskReply | 0x0001
	RemoteStatusReqTypeID uint32 = GroupOTAP | 0x0000
	RemoteStatusIndTypeID uint32 = RemoteStatusReqTypeID | TypeIDMaskReply
	RemoteUpdateReqTypeID uint32 = GroupOTAP | 0x0001
)

// MessageTypes are predefined mapping of type ID to messages.
var MessageTypes = map[uint32]SerializableMessage{
	CommandErrTypeID:      (*CommandErr)(nil),
	RemoteStatusReqTypeID: (*RemoteStatusReq)(nil),
	RemoteStatusIndTypeID: (*RemoteStatusInd)(nil),
	RemoteUpdateReqTypeID: (*RemoteUpdateReq)(nil),
}
