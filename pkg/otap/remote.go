package otap

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/meshota/pkg/area"
	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/mesh"
	"github.com/robotalks/meshota/pkg/msgs"
	"github.com/robotalks/meshota/pkg/scratchpad"
)

// RemoteSnapshot is the status of a remote node as seen from here.
type RemoteSnapshot struct {
	Source   mesh.Address
	HopCount uint32
	// TravelTime is the queuing delay between the remote node sending
	// the snapshot and its reception.
	TravelTime    time.Duration
	Queued        uint8
	Result        RemoteResult
	Stored        scratchpad.StoredStatus
	Processed     scratchpad.ProcessedStatus
	Firmware      area.Version
	UpdateTimeout time.Duration
}

// RemoteOutcome is the outcome of a remote request. Err is
// mesh.ErrTimeout when nothing was received in time.
type RemoteOutcome struct {
	RequestID uint32
	Snapshots []RemoteSnapshot
	Err       error
}

// Result is the result code reported for the outcome.
func (o RemoteOutcome) Result() RemoteResult {
	switch {
	case o.Err == mesh.ErrTimeout:
		return RemoteTimeout
	case o.Err != nil:
		return RemoteInvalidState
	}
	return RemoteSuccess
}

// RemoteQuery is an outstanding remote request.
type RemoteQuery struct {
	future mesh.Future
}

// RequestID identifies the request.
func (q *RemoteQuery) RequestID() uint32 {
	return q.future.Sequence()
}

// Poll returns the outcome once available without blocking.
func (q *RemoteQuery) Poll() (RemoteOutcome, bool) {
	select {
	case r, ok := <-q.future.ResultChan():
		if !ok {
			return RemoteOutcome{}, false
		}
		return q.outcome(r), true
	default:
		return RemoteOutcome{}, false
	}
}

// Wait blocks until the outcome is available.
func (q *RemoteQuery) Wait(ctx context.Context) (RemoteOutcome, error) {
	select {
	case <-ctx.Done():
		return RemoteOutcome{}, ctx.Err()
	case r := <-q.future.ResultChan():
		return q.outcome(r), nil
	}
}

func (q *RemoteQuery) outcome(r mesh.Result) RemoteOutcome {
	o := RemoteOutcome{RequestID: q.RequestID(), Err: r.Err}
	for _, reply := range r.Replies {
		if ind, ok := reply.Msg.(*msgs.RemoteStatusInd); ok {
			o.Snapshots = append(o.Snapshots, snapshotFrom(reply, ind))
		}
	}
	return o
}

func snapshotFrom(reply mesh.Reply, ind *msgs.RemoteStatusInd) RemoteSnapshot {
	return RemoteSnapshot{
		Source:     reply.Source,
		HopCount:   reply.HopCount,
		TravelTime: reply.TravelTime,
		Queued:     uint8(ind.Queued),
		Result:     RemoteResult(ind.Result),
		Stored: scratchpad.StoredStatus{
			NumBytes: ind.NumBytes,
			CRC:      uint16(ind.Crc),
			Seq:      scratchpad.Seq(ind.Seq),
			Type:     scratchpad.StoredType(ind.Type),
			Status:   ind.Status,
		},
		Processed: scratchpad.ProcessedStatus{
			NumBytes: ind.ProcessedNumBytes,
			CRC:      uint16(ind.ProcessedCrc),
			Seq:      scratchpad.Seq(ind.ProcessedSeq),
			AreaID:   area.ID(ind.AreaId),
		},
		Firmware: area.Version{
			Major: uint8(ind.Major),
			Minor: uint8(ind.Minor),
			Maint: uint8(ind.Maint),
			Devel: uint8(ind.Devel),
		},
		UpdateTimeout: time.Duration(ind.UpdateTimeoutS) * time.Second,
	}
}

// RemoteStatus sends remote status and update requests over the mesh.
type RemoteStatus struct {
	Conn  *mesh.Conn
	Locks *Locks
}

// Query asks dst, possibly mesh.Broadcast, for its status. A unicast
// query resolves with the first snapshot; a broadcast one collects
// snapshots until timeout.
func (r *RemoteStatus) Query(dst mesh.Address, timeout time.Duration) (*RemoteQuery, RemoteResult) {
	if r.Locks != nil && !r.Locks.Permits(LockRemoteAPITx) {
		return nil, RemoteAccessDenied
	}
	q := &RemoteQuery{future: r.Conn.Request(dst, &msgs.RemoteStatusReq{}, timeout)}
	glog.V(2).Infof("otap: remote status %d to %s", q.RequestID(), dst)
	return q, RemoteSuccess
}

// Update asks dst to install its stored scratchpad seq after delay.
func (r *RemoteStatus) Update(dst mesh.Address, seq uint8, delay time.Duration, timeout time.Duration) (*RemoteQuery, RemoteResult) {
	if r.Locks != nil && !r.Locks.Permits(LockRemoteAPITx) {
		return nil, RemoteAccessDenied
	}
	req := &msgs.RemoteUpdateReq{}
	req.Sequence = uint32(seq)
	req.DelaySeconds = uint32(delay / time.Second)
	q := &RemoteQuery{future: r.Conn.Request(dst, req, timeout)}
	glog.V(2).Infof("otap: remote update %d to %s seq %d", q.RequestID(), dst, seq)
	return q, RemoteSuccess
}

// Responder answers remote status and update requests from other
// nodes with snapshots of the local Service.
type Responder struct {
	Service *Service
	// Queued reports the indications waiting for the local application.
	Queued func() int
}

// Control implements Controller.
func (r *Responder) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*mesh.CommandMsg)
		if !ok {
			return
		}
		cmd := cmdMsg.Command
		switch req := cmd.Msg().(type) {
		case *msgs.RemoteStatusReq:
			mctx.MessageTaken()
			r.reply(cmd, RemoteSuccess)
		case *msgs.RemoteUpdateReq:
			mctx.MessageTaken()
			delay := time.Duration(req.DelaySeconds) * time.Second
			glog.Infof("otap: remote update from %s: seq %d in %s", cmd.Source(), req.Sequence, delay)
			r.Service.RequestUpdate(uint8(req.Sequence), delay, func(res RemoteResult) {
				r.reply(cmd, res)
			})
		}
	}))
	return nil
}

// AddToLoop implements LoopAdder.
func (r *Responder) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvHandle, r)
}

func (r *Responder) reply(cmd mesh.Command, res RemoteResult) {
	if !r.Service.Locks.Permits(LockOTAP) {
		r.send(cmd, &msgs.RemoteStatusInd{RemoteStatusIndPb: msgs.RemoteStatusIndPb{Result: uint32(RemoteAccessDenied)}})
		return
	}
	r.Service.Status(func(info StatusInfo, err error) {
		if err != nil {
			glog.Warningf("otap: status for %s: %v", cmd.Source(), err)
			if res == RemoteSuccess {
				res = RemoteInvalidState
			}
		}
		r.send(cmd, r.indication(info, res))
	})
}

func (r *Responder) indication(info StatusInfo, res RemoteResult) *msgs.RemoteStatusInd {
	ind := &msgs.RemoteStatusInd{}
	ind.Result = uint32(res)
	if r.Queued != nil {
		ind.Queued = uint32(r.Queued())
	}
	ind.NumBytes = info.Stored.NumBytes
	ind.Crc = uint32(info.Stored.CRC)
	ind.Seq = uint32(info.Stored.Seq)
	ind.Type = uint32(info.Stored.Type)
	ind.Status = info.Stored.Status
	ind.ProcessedNumBytes = info.Processed.NumBytes
	ind.ProcessedCrc = uint32(info.Processed.CRC)
	ind.ProcessedSeq = uint32(info.Processed.Seq)
	ind.AreaId = uint32(info.Processed.AreaID)
	ind.Major = uint32(info.Firmware.Major)
	ind.Minor = uint32(info.Firmware.Minor)
	ind.Maint = uint32(info.Firmware.Maint)
	ind.Devel = uint32(info.Firmware.Devel)
	ind.UpdateTimeoutS = uint32((r.Service.UpdateTimeout() + time.Second - 1) / time.Second)
	return ind
}

func (r *Responder) send(cmd mesh.Command, ind *msgs.RemoteStatusInd) {
	if err := cmd.Done(ind); err != nil {
		glog.Warningf("otap: reply to %s failed: %v", cmd.Source(), err)
	}
}
