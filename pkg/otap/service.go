// Package otap is the network facing side of the scratchpad: block
// transfer, target negotiation and remote status, with feature locks
// and stack state applied to every request.
package otap

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/meshota/pkg/area"
	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/scratchpad"
)

// MaxBlockSize is the largest block accepted by Block and ReadBlock.
const MaxBlockSize = 112

// Readback is only allowed for scratchpads carrying the
// unauthenticated all-ones CMAC tag at this location.
const (
	cmacOffset = 32
	cmacSize   = 16
)

// StatusInfo is the status snapshot reported to the network.
type StatusInfo struct {
	scratchpad.Status
	Firmware area.Version
	// Session is the open transfer, if Transferring.
	Session      scratchpad.Session
	Transferring bool
}

// Service applies locks and stack state to scratchpad requests and
// converts outcomes to result codes. It is not safe for concurrent use;
// requests and flash callbacks run from the same loop.
type Service struct {
	Store    *scratchpad.Store
	Locks    Locks
	Role     Role
	Firmware area.Version
	Clock    fx.Clock

	// OnTargetChanged observes accepted targets.
	OnTargetChanged func(Target)
	// OnStackChanged observes stack state changes.
	OnStackChanged func(started bool)
	// OnReboot is invoked when the node must reboot into the
	// bootloader: on stack stop and when a scheduled update is due.
	OnReboot func()

	stackStarted bool
	target       Target
	update       *scheduledUpdate
}

type scheduledUpdate struct {
	seq scratchpad.Seq
	due time.Time
}

// NewService creates a Service with all features unlocked and the stack
// stopped.
func NewService(store *scratchpad.Store) *Service {
	return &Service{Store: store, Locks: Unlocked()}
}

// Restore sets the persisted target and stack state without notifying
// observers. A scheduled update does not survive it.
func (s *Service) Restore(target Target, stackStarted bool) {
	s.target, s.stackStarted = target, stackStarted
	s.update = nil
}

// StackStarted tells whether the stack runs. Scratchpad writes are
// refused while it does.
func (s *Service) StackStarted() bool {
	return s.stackStarted
}

// StackStart starts the stack.
func (s *Service) StackStart() StackResult {
	if !s.Locks.Permits(LockStackStart) {
		return StackAccessDenied
	}
	if s.stackStarted {
		return StackInvalidState
	}
	s.stackStarted = true
	glog.Info("otap: stack started")
	if s.OnStackChanged != nil {
		s.OnStackChanged(true)
	}
	return StackSuccess
}

// StackStop stops the stack and reboots, even if already stopped, so a
// scratchpad marked bootable gets processed.
func (s *Service) StackStop() StackResult {
	if !s.Locks.Permits(LockStackStop) {
		return StackAccessDenied
	}
	changed := s.stackStarted
	s.stackStarted = false
	glog.Info("otap: stack stopped")
	if changed && s.OnStackChanged != nil {
		s.OnStackChanged(false)
	}
	s.reboot()
	return StackSuccess
}

// Start opens a transfer of numBytes with sequence seq. done may run
// before Start returns.
func (s *Service) Start(numBytes uint32, seq uint8, done func(StartResult)) {
	if !s.Locks.Permits(LockScratchpadStart) {
		done(StartAccessDenied)
		return
	}
	if s.stackStarted {
		done(StartInvalidState)
		return
	}
	s.update = nil
	err := s.Store.Begin(numBytes, scratchpad.Seq(seq), func(err error) {
		if err != nil {
			done(StartInvalidState)
			return
		}
		done(StartSuccess)
	})
	switch err {
	case nil:
	case scratchpad.ErrInvalidNumBytes:
		done(StartInvalidNumBytes)
	case scratchpad.ErrInvalidSeq:
		done(StartInvalidSeq)
	default:
		glog.Warningf("otap: start %d bytes seq %d rejected: %v", numBytes, seq, err)
		done(StartInvalidState)
	}
}

// Block writes the next block of the transfer. done may run before
// Block returns.
func (s *Service) Block(start uint32, data []byte, done func(BlockResult)) {
	if s.stackStarted {
		done(BlockInvalidState)
		return
	}
	if len(data) > MaxBlockSize {
		done(BlockInvalidNumBytes)
		return
	}
	if r := s.Store.Write(start, data, func(r scratchpad.WriteResult) {
		res := blockResult(r)
		if res == BlockCompletedOK || res == BlockCompletedError {
			glog.Infof("otap: transfer finished: %s", res)
		}
		done(res)
	}); r != scratchpad.WriteOK {
		done(blockResult(r))
	}
}

func blockResult(r scratchpad.WriteResult) BlockResult {
	switch r {
	case scratchpad.WriteOK:
		return BlockSuccess
	case scratchpad.WriteCompletedOK:
		return BlockCompletedOK
	case scratchpad.WriteCompletedError:
		return BlockCompletedError
	case scratchpad.WriteNotOngoing:
		return BlockNotOngoing
	case scratchpad.WriteInvalidStart:
		return BlockInvalidStartAddr
	case scratchpad.WriteInvalidNumBytes:
		return BlockInvalidNumBytes
	case scratchpad.WriteInvalidHeader, scratchpad.WriteInvalidNullBytes:
		return BlockInvalidData
	}
	return BlockInvalidState
}

// Status reports the stored and processed scratchpads. Everything is
// zero when the status feature is locked.
func (s *Service) Status(done func(StatusInfo, error)) {
	if !s.Locks.Permits(LockScratchpadStatus) {
		done(StatusInfo{}, nil)
		return
	}
	info := StatusInfo{Firmware: s.Firmware}
	info.Session, info.Transferring = s.Store.Session()
	if err := s.Store.Status(func(st scratchpad.Status, err error) {
		info.Status = st
		done(info, err)
	}); err != nil {
		done(info, err)
	}
}

// Bootable marks the stored scratchpad for processing on next reboot.
func (s *Service) Bootable(done func(BootableResult)) {
	if !s.Locks.Permits(LockScratchpadStart) {
		done(BootableAccessDenied)
		return
	}
	if s.stackStarted {
		done(BootableInvalidState)
		return
	}
	if err := s.Store.SetBootable(func(err error) {
		done(bootableResult(err))
	}); err != nil {
		done(bootableResult(err))
	}
}

func bootableResult(err error) BootableResult {
	switch err {
	case nil:
		return BootableSuccess
	case scratchpad.ErrNotValid, scratchpad.ErrNoScratchpad:
		return BootableNoScratchpad
	}
	return BootableInvalidState
}

// Clear erases the scratchpad and cancels any transfer.
func (s *Service) Clear(done func(ClearResult)) {
	if !s.Locks.Permits(LockScratchpadStart) {
		done(ClearAccessDenied)
		return
	}
	if s.stackStarted {
		done(ClearInvalidState)
		return
	}
	s.update = nil
	if err := s.Store.Clear(func(err error) {
		if err != nil {
			done(ClearInvalidState)
			return
		}
		done(ClearSuccess)
	}); err != nil {
		done(ClearInvalidState)
	}
}

// ReadBlock reads back n bytes of the stored scratchpad at start.
// Reads past the end are truncated.
func (s *Service) ReadBlock(start uint32, n uint32, done func(ReadResult, []byte)) {
	if !s.Locks.Permits(LockScratchpadStart) {
		done(ReadAccessDenied, nil)
		return
	}
	err := s.Store.Status(func(st scratchpad.Status, err error) {
		if err != nil || st.Validity == scratchpad.Unknown {
			done(ReadInvalidState, nil)
			return
		}
		total := st.Stored.NumBytes
		s.readAllowed(total, func(ok bool) {
			switch {
			case !ok:
				done(ReadAccessDenied, nil)
			case start%4 != 0 || start > total:
				done(ReadInvalidStartAddr, nil)
			case n%4 != 0 || n > MaxBlockSize:
				done(ReadInvalidNumBytes, nil)
			case total == 0:
				done(ReadNoScratchpad, nil)
			default:
				if total-start < n {
					n = total - start
				}
				s.read(start, n, done)
			}
		})
	})
	if err != nil {
		done(ReadInvalidState, nil)
	}
}

func (s *Service) read(start, n uint32, done func(ReadResult, []byte)) {
	buf := make([]byte, n)
	if n == 0 {
		done(ReadSuccess, buf)
		return
	}
	finish := func(err error) {
		switch err {
		case nil:
			done(ReadSuccess, buf)
		case scratchpad.ErrNoScratchpad:
			done(ReadNoScratchpad, nil)
		case scratchpad.ErrInvalidNumBytes:
			done(ReadInvalidNumBytes, nil)
		default:
			done(ReadInvalidState, nil)
		}
	}
	if err := s.Store.Read(start, buf, finish); err != nil {
		finish(err)
	}
}

// readAllowed checks the CMAC tag. An erased area has nothing to
// protect.
func (s *Service) readAllowed(total uint32, done func(bool)) {
	if total == 0 {
		done(true)
		return
	}
	if total < cmacOffset+cmacSize {
		done(false)
		return
	}
	tag := make([]byte, cmacSize)
	if err := s.Store.Read(cmacOffset, tag, func(err error) {
		if err != nil {
			done(false)
			return
		}
		for _, b := range tag {
			if b != 0xff {
				done(false)
				return
			}
		}
		done(true)
	}); err != nil {
		done(false)
	}
}

// Target returns the last accepted target.
func (s *Service) Target() Target {
	return s.target
}

// WriteTarget sets the target scratchpad and action. On a sink, a
// processing action for the stored scratchpad also schedules its
// installation.
func (s *Service) WriteTarget(t Target) TargetResult {
	if !s.Locks.Permits(LockOTAP) {
		return TargetAccessDenied
	}
	if r := checkTarget(t, s.target, s.Role); r != TargetSuccess {
		return r
	}
	s.target = t
	glog.Infof("otap: target set: %s", t)
	if s.OnTargetChanged != nil {
		s.OnTargetChanged(t)
	}
	if t.Action.Processes() {
		var delay time.Duration
		if t.Action == ActionPropagateAndProcessDelayed {
			delay = t.Delay().Duration()
		}
		s.RequestUpdate(t.Sequence, delay, func(r RemoteResult) {
			glog.V(2).Infof("otap: target processing: %s", r)
		})
	}
	return TargetSuccess
}

// RequestUpdate marks the stored scratchpad bootable if its sequence is
// seq and schedules the reboot after delay.
func (s *Service) RequestUpdate(seq uint8, delay time.Duration, done func(RemoteResult)) {
	if !s.Locks.Permits(LockOTAP) {
		done(RemoteAccessDenied)
		return
	}
	if s.stackStarted {
		done(RemoteInvalidState)
		return
	}
	err := s.Store.Status(func(st scratchpad.Status, err error) {
		if err != nil || st.Validity != scratchpad.Valid || uint8(st.Stored.Seq) != seq {
			done(RemoteInvalidState)
			return
		}
		if err := s.Store.SetBootable(func(err error) {
			if err != nil {
				done(RemoteInvalidState)
				return
			}
			due := s.now().Add(delay)
			s.update = &scheduledUpdate{seq: scratchpad.Seq(seq), due: due}
			glog.Infof("otap: update to seq %d scheduled in %s", seq, delay)
			done(RemoteSuccess)
		}); err != nil {
			done(RemoteInvalidState)
		}
	})
	if err != nil {
		done(RemoteInvalidState)
	}
}

// UpdateTimeout is the time left until a scheduled update reboots the
// node, zero if none is scheduled.
func (s *Service) UpdateTimeout() time.Duration {
	if s.update == nil {
		return 0
	}
	if left := s.update.due.Sub(s.now()); left > 0 {
		return left
	}
	return 0
}

// AddToLoop implements LoopAdder.
func (s *Service) AddToLoop(l *fx.Loop) {
	if s.Clock == nil {
		s.Clock = l.Clock
	}
	l.AddController(fx.PrLvSchedule, fx.ControlFunc(s.checkUpdate))
}

func (s *Service) checkUpdate(cc fx.ControlContext) error {
	if s.update == nil || cc.Time().Before(s.update.due) {
		return nil
	}
	glog.Infof("otap: scheduled update to seq %d due", s.update.seq)
	s.update = nil
	s.reboot()
	return nil
}

func (s *Service) reboot() {
	if s.OnReboot != nil {
		s.OnReboot()
	}
}

func (s *Service) now() time.Time {
	return fx.ClockOrSystem(s.Clock).Now()
}
