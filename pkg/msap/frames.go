package msap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	"github.com/robotalks/meshota/pkg/area"
	"github.com/robotalks/meshota/pkg/otap"
	"github.com/robotalks/meshota/pkg/scratchpad"
)

// ErrInvalidLength indicates a payload of the wrong size.
var ErrInvalidLength = errors.New("invalid payload length")

// Fixed size payloads are packed little endian structs.

func encode(v interface{}) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func decode(b []byte, v interface{}) error {
	if len(b) != binary.Size(v) {
		return ErrInvalidLength
	}
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, v)
}

// StackStartReq is the payload of FuncStackStart.
type StackStartReq struct {
	Options uint8
}

// StartReq is the payload of FuncScratchpadStart.
type StartReq struct {
	NumBytes uint32
	Seq      uint8
}

// BlockReq is the payload of FuncScratchpadBlock.
type BlockReq struct {
	Start uint32
	Data  []byte
}

const blockReqHeaderSize = 5

// Bytes encodes the request.
func (r *BlockReq) Bytes() []byte {
	b := make([]byte, blockReqHeaderSize+len(r.Data))
	binary.LittleEndian.PutUint32(b, r.Start)
	b[4] = byte(len(r.Data))
	copy(b[blockReqHeaderSize:], r.Data)
	return b
}

// DecodeBlockReq decodes the request; the length byte must match.
func DecodeBlockReq(b []byte) (*BlockReq, error) {
	if len(b) < blockReqHeaderSize || int(b[4]) != len(b)-blockReqHeaderSize {
		return nil, ErrInvalidLength
	}
	return &BlockReq{
		Start: binary.LittleEndian.Uint32(b),
		Data:  append([]byte{}, b[blockReqHeaderSize:]...),
	}, nil
}

// ScratchpadStatus is the confirmation of FuncScratchpadStatus.
type ScratchpadStatus struct {
	NumBytes          uint32
	CRC               uint16
	Seq               uint8
	Type              uint8
	Status            uint8
	ProcessedNumBytes uint32
	ProcessedCRC      uint16
	ProcessedSeq      uint8
	AreaID            uint32
	Major             uint8
	Minor             uint8
	Maint             uint8
	Devel             uint8
}

// Firmware is the running firmware version.
func (s *ScratchpadStatus) Firmware() area.Version {
	return area.Version{Major: s.Major, Minor: s.Minor, Maint: s.Maint, Devel: s.Devel}
}

func statusFrom(stored scratchpad.StoredStatus, processed scratchpad.ProcessedStatus, fw area.Version) ScratchpadStatus {
	return ScratchpadStatus{
		NumBytes:          stored.NumBytes,
		CRC:               stored.CRC,
		Seq:               uint8(stored.Seq),
		Type:              uint8(stored.Type),
		Status:            uint8(stored.Status),
		ProcessedNumBytes: processed.NumBytes,
		ProcessedCRC:      processed.CRC,
		ProcessedSeq:      uint8(processed.Seq),
		AreaID:            uint32(processed.AreaID),
		Major:             fw.Major,
		Minor:             fw.Minor,
		Maint:             fw.Maint,
		Devel:             fw.Devel,
	}
}

// RemoteStatusReq is the payload of FuncRemoteStatus.
type RemoteStatusReq struct {
	Target uint32
}

// RemoteUpdateReq is the payload of FuncRemoteUpdate.
type RemoteUpdateReq struct {
	Target       uint32
	Seq          uint8
	DelaySeconds uint16
}

// RemoteStatusInd is the payload of FuncRemoteStatusInd. Result,
// HopCount and TravelTimeMs follow the status; a timed out request is
// reported with Result otap.RemoteTimeout and Source set to the target.
type RemoteStatusInd struct {
	Queued uint8
	Source uint32
	ScratchpadStatus
	UpdateTimeoutS uint16
	Result         uint8
	HopCount       uint8
	TravelTimeMs   uint32
}

func indicationFrom(s otap.RemoteSnapshot) RemoteStatusInd {
	ind := RemoteStatusInd{
		Source:           uint32(s.Source),
		ScratchpadStatus: statusFrom(s.Stored, s.Processed, s.Firmware),
		Result:           uint8(s.Result),
		HopCount:         uint8(s.HopCount),
		TravelTimeMs:     uint32(s.TravelTime / time.Millisecond),
	}
	timeout := (s.UpdateTimeout + time.Second - 1) / time.Second
	if timeout > 0xffff {
		timeout = 0xffff
	}
	ind.UpdateTimeoutS = uint16(timeout)
	return ind
}

// TargetWriteReq is the payload of FuncTargetWrite.
type TargetWriteReq struct {
	Seq    uint8
	CRC    uint16
	Action uint8
	Param  uint8
}

// Target converts the request.
func (r *TargetWriteReq) Target() otap.Target {
	return otap.Target{Sequence: r.Seq, CRC: r.CRC, Action: otap.Action(r.Action), Param: r.Param}
}

// TargetReadCnf is the confirmation of FuncTargetRead.
type TargetReadCnf struct {
	Result uint8
	TargetWriteReq
}

func targetReq(t otap.Target) TargetWriteReq {
	return TargetWriteReq{Seq: t.Sequence, CRC: t.CRC, Action: uint8(t.Action), Param: t.Param}
}

// BlockReadReq is the payload of FuncScratchpadBlockRd.
type BlockReadReq struct {
	Start    uint32
	NumBytes uint8
}
