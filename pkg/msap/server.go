package msap

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/link"
	"github.com/robotalks/meshota/pkg/mesh"
	"github.com/robotalks/meshota/pkg/otap"
)

// FrameMsg wraps a received request frame as a loop message.
type FrameMsg struct {
	Frame *link.Frame
}

// NewMessage implements Message.
func (m *FrameMsg) NewMessage() fx.Message { return &FrameMsg{} }

// Sender sends frames to the application.
type Sender interface {
	Send(*link.Frame) error
}

// Server answers MSAP requests from the application with the local
// Service. Requests are handled from the loop; confirmations are sent
// when the service completes them. Remote status indications are sent
// from the loop as queries resolve.
type Server struct {
	Service *otap.Service
	// Remote sends remote requests. Without it remote requests are
	// denied.
	Remote *otap.RemoteStatus
	// RemoteTimeout bounds remote requests; zero uses the mesh default.
	RemoteTimeout time.Duration
	Sender        Sender

	loop    *fx.Loop
	queries []pendingQuery
	outbox  []RemoteStatusInd
	indID   link.FrameID
	lock    sync.Mutex
}

type pendingQuery struct {
	target mesh.Address
	query  *otap.RemoteQuery
}

// NewServer creates a Server.
func NewServer(svc *otap.Service, sender Sender) *Server {
	return &Server{Service: svc, Sender: sender, indID: link.NewFrameID()}
}

// HandleFrame implements link.FrameHandler.
func (s *Server) HandleFrame(ctx context.Context, f *link.Frame) {
	if f.IsConfirm() {
		glog.V(2).Infof("msap: ignored %s %s", FuncName(f.Func), f)
		return
	}
	if s.loop == nil {
		glog.Warningf("msap: not attached to a loop, %s dropped", FuncName(f.Func))
		return
	}
	s.loop.PostMessage(&FrameMsg{Frame: f})
	s.loop.TriggerNext()
}

// Queued is the number of indications waiting to be sent.
func (s *Server) Queued() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.outbox)
}

// Pending is the number of remote requests not resolved yet.
func (s *Server) Pending() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.queries)
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(l *fx.Loop) {
	s.loop = l
	l.AddController(fx.PrLvHandle, fx.ControlFunc(s.handle))
	l.AddController(fx.PrLvSchedule, fx.ControlFunc(s.flush))
}

func (s *Server) handle(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		if msg, ok := mctx.CurrentMessage().(*FrameMsg); ok {
			mctx.MessageTaken()
			s.dispatch(msg.Frame)
		}
	}))
	return nil
}

// dispatch handles a request. Malformed requests are dropped without
// confirmation.
func (s *Server) dispatch(f *link.Frame) {
	glog.V(2).Infof("msap: %s %s", FuncName(f.Func), f)
	var err error
	switch f.Func {
	case FuncStackStart:
		var req StackStartReq
		if err = decode(f.Payload, &req); err == nil {
			s.result(f, uint8(s.Service.StackStart()))
		}
	case FuncStackStop:
		if err = expectEmpty(f); err == nil {
			s.result(f, uint8(s.Service.StackStop()))
		}
	case FuncScratchpadStart:
		var req StartReq
		if err = decode(f.Payload, &req); err == nil {
			s.Service.Start(req.NumBytes, req.Seq, func(r otap.StartResult) { s.result(f, uint8(r)) })
		}
	case FuncScratchpadBlock:
		var req *BlockReq
		if req, err = DecodeBlockReq(f.Payload); err == nil {
			s.Service.Block(req.Start, req.Data, func(r otap.BlockResult) { s.result(f, uint8(r)) })
		}
	case FuncScratchpadStatus:
		if err = expectEmpty(f); err == nil {
			s.Service.Status(func(info otap.StatusInfo, err error) {
				if err != nil {
					glog.Warningf("msap: status: %v", err)
				}
				st := statusFrom(info.Stored, info.Processed, info.Firmware)
				s.confirm(f, encode(&st))
			})
		}
	case FuncScratchpadBoot:
		if err = expectEmpty(f); err == nil {
			s.Service.Bootable(func(r otap.BootableResult) { s.result(f, uint8(r)) })
		}
	case FuncScratchpadClear:
		if err = expectEmpty(f); err == nil {
			s.Service.Clear(func(r otap.ClearResult) { s.result(f, uint8(r)) })
		}
	case FuncRemoteStatus:
		var req RemoteStatusReq
		if err = decode(f.Payload, &req); err == nil {
			s.remoteStatus(f, mesh.Address(req.Target))
		}
	case FuncRemoteUpdate:
		var req RemoteUpdateReq
		if err = decode(f.Payload, &req); err == nil {
			s.remoteUpdate(f, &req)
		}
	case FuncTargetWrite:
		var req TargetWriteReq
		if err = decode(f.Payload, &req); err == nil {
			s.result(f, uint8(s.Service.WriteTarget(req.Target())))
		}
	case FuncTargetRead:
		if err = expectEmpty(f); err == nil {
			cnf := TargetReadCnf{TargetWriteReq: targetReq(s.Service.Target())}
			s.confirm(f, encode(&cnf))
		}
	case FuncScratchpadBlockRd:
		var req BlockReadReq
		if err = decode(f.Payload, &req); err == nil {
			s.Service.ReadBlock(req.Start, uint32(req.NumBytes), func(r otap.ReadResult, data []byte) {
				s.confirm(f, append([]byte{uint8(r)}, data...))
			})
		}
	default:
		glog.Warningf("msap: unsupported function 0x%02x", f.Func)
		return
	}
	if err != nil {
		glog.Warningf("msap: %s dropped: %v", FuncName(f.Func), err)
	}
}

func expectEmpty(f *link.Frame) error {
	if len(f.Payload) != 0 {
		return ErrInvalidLength
	}
	return nil
}

func (s *Server) remoteStatus(f *link.Frame, target mesh.Address) {
	if s.Remote == nil {
		s.result(f, uint8(otap.RemoteAccessDenied))
		return
	}
	q, res := s.Remote.Query(target, s.RemoteTimeout)
	s.track(target, q)
	s.result(f, uint8(res))
}

func (s *Server) remoteUpdate(f *link.Frame, req *RemoteUpdateReq) {
	if s.Remote == nil {
		s.result(f, uint8(otap.RemoteAccessDenied))
		return
	}
	target := mesh.Address(req.Target)
	delay := time.Duration(req.DelaySeconds) * time.Second
	q, res := s.Remote.Update(target, req.Seq, delay, s.RemoteTimeout)
	s.track(target, q)
	s.result(f, uint8(res))
}

func (s *Server) track(target mesh.Address, q *otap.RemoteQuery) {
	if q == nil {
		return
	}
	s.lock.Lock()
	s.queries = append(s.queries, pendingQuery{target: target, query: q})
	s.lock.Unlock()
}

// flush turns resolved queries into indications and sends them.
func (s *Server) flush(cc fx.ControlContext) error {
	s.lock.Lock()
	queries := s.queries[:0]
	for _, pq := range s.queries {
		o, ok := pq.query.Poll()
		if !ok {
			queries = append(queries, pq)
			continue
		}
		if len(o.Snapshots) == 0 {
			glog.Infof("msap: remote request %d to %s: %s", o.RequestID, pq.target, o.Result())
			s.outbox = append(s.outbox, RemoteStatusInd{Source: uint32(pq.target), Result: uint8(o.Result())})
			continue
		}
		for _, snapshot := range o.Snapshots {
			s.outbox = append(s.outbox, indicationFrom(snapshot))
		}
	}
	s.queries = queries
	s.lock.Unlock()

	for {
		s.lock.Lock()
		if len(s.outbox) == 0 {
			s.lock.Unlock()
			return nil
		}
		ind := s.outbox[0]
		s.outbox = s.outbox[1:]
		ind.Queued = 0xff
		if n := len(s.outbox); n < 0xff {
			ind.Queued = uint8(n)
		}
		id := s.indID
		s.indID = s.indID.Next()
		s.lock.Unlock()
		s.send(&link.Frame{Func: FuncRemoteStatusInd, ID: id, Payload: encode(&ind)})
	}
}

func (s *Server) result(req *link.Frame, r uint8) {
	s.confirm(req, []byte{r})
}

func (s *Server) confirm(req *link.Frame, payload []byte) {
	s.send(&link.Frame{Func: Confirm(req.Func), ID: req.ID, Payload: payload})
}

func (s *Server) send(f *link.Frame) {
	if s.Sender == nil {
		return
	}
	if err := s.Sender.Send(f); err != nil {
		glog.Warningf("msap: send %s failed: %v", FuncName(f.Func), err)
	}
}
