package scratchpad

import (
	"bytes"
	"strconv"

	"github.com/golang/glog"

	"github.com/robotalks/meshota/pkg/area"
)

// State of the store.
type State uint8

// States.
const (
	StateEmpty State = iota
	StateTransferring
	StateCompleteValid
	StateCompleteInvalid
	StateArmed
)

var stateNames = []string{"empty", "transferring", "complete-valid", "complete-invalid", "armed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Session is an open transfer.
type Session struct {
	DeclaredLength uint32
	Sequence       Seq
	BytesWritten   uint32
	NextOffset     uint32
}

// StoredStatus describes the scratchpad in the area. Fields are zero
// unless header and CRC are good.
type StoredStatus struct {
	NumBytes uint32
	CRC      uint16
	Seq      Seq
	Type     StoredType
	Status   uint32
}

// ProcessedStatus describes the scratchpad the bootloader last
// installed, taken from the header of the stack area.
type ProcessedStatus struct {
	NumBytes uint32
	CRC      uint16
	Seq      Seq
	AreaID   area.ID
	Version  area.Version
}

// Status combines the stored and processed scratchpads.
type Status struct {
	Validity  Validity
	Stored    StoredStatus
	Processed ProcessedStatus
}

// ScanChunk is the size of the reads while verifying the payload.
const ScanChunk = 4096

// Store owns the scratchpad area. It is not safe for concurrent use;
// all calls and flash callbacks are expected from the same loop.
type Store struct {
	// OnTransition observes state changes.
	OnTransition func(from, to State)

	table *area.Table
	info  area.Info

	state   State
	busy    bool
	session *Session
	prefix  [PrefixSize]byte
	header  *Header
	crc     uint16
}

// NewStore creates a Store over the scratchpad area of the table.
// Call Load to derive the initial state from flash.
func NewStore(table *area.Table) (*Store, error) {
	a, ok := table.FindType(area.TypeScratchpad)
	if !ok {
		return nil, ErrNoArea
	}
	info, err := table.Info(a.ID)
	if err != nil {
		return nil, err
	}
	return &Store{table: table, info: info}, nil
}

// AreaID is the id of the scratchpad area.
func (s *Store) AreaID() area.ID {
	return s.info.ID
}

// Size is the size of the scratchpad area.
func (s *Store) Size() uint32 {
	return s.info.Size
}

// State returns the current state.
func (s *Store) State() State {
	return s.state
}

// Session returns a copy of the open session.
func (s *Store) Session() (Session, bool) {
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// IsBusy reports whether a store operation is in progress.
func (s *Store) IsBusy() bool {
	return s.busy || s.table.IsBusy(s.info.ID)
}

// Reset forgets the open session and the derived state, as a reboot
// does. Flash is left untouched; call Load afterwards.
func (s *Store) Reset() {
	if s.session != nil {
		glog.Warningf("scratchpad: reset drops session seq %d at %d/%d",
			s.session.Sequence, s.session.BytesWritten, s.session.DeclaredLength)
	}
	s.state, s.busy, s.session = StateEmpty, false, nil
	s.header, s.crc = nil, CRCInit
	for n := range s.prefix {
		s.prefix[n] = 0xff
	}
}

// Load derives the state from the contents of the area.
func (s *Store) Load(done func(error)) error {
	return s.Validity(func(v Validity, err error) {
		if done != nil {
			done(err)
		}
	})
}

// Begin erases the space needed for numBytes and opens a session.
// It is rejected while another session is open; Clear cancels a session.
func (s *Store) Begin(numBytes uint32, seq Seq, done func(error)) error {
	if s.session != nil {
		glog.Warningf("scratchpad: begin rejected, session seq %d at %d/%d",
			s.session.Sequence, s.session.BytesWritten, s.session.DeclaredLength)
		return ErrSessionActive
	}
	if s.IsBusy() {
		return ErrBusy
	}
	if numBytes%Alignment != 0 || numBytes < MinLength || numBytes > s.info.Size {
		return ErrInvalidNumBytes
	}
	if seq == SeqNone {
		return ErrInvalidSeq
	}
	sector := s.info.Timing.EraseSectorSize
	sectors := (numBytes + sector - 1) / sector
	s.busy = true
	err := area.EraseRange(s.table, s.info.ID, 0, sectors, func(err error) {
		s.busy = false
		if err == nil {
			s.session = &Session{DeclaredLength: numBytes, Sequence: seq}
			s.header, s.crc = nil, CRCInit
			for n := range s.prefix {
				s.prefix[n] = 0xff
			}
			glog.Infof("scratchpad: transfer started, %d bytes seq %d", numBytes, seq)
			s.transit(StateTransferring)
		} else {
			glog.Errorf("scratchpad: erase failed: %v", err)
			s.transit(StateEmpty)
		}
		if done != nil {
			done(err)
		}
	})
	if err != nil {
		s.busy = false
	}
	return err
}

// Write accepts the next block of the transfer. Anything but WriteOK is
// a rejection that leaves the session unchanged. When accepted, done
// receives the final result once the block is on flash: WriteOK,
// WriteCompletedOK or WriteCompletedError for the last block, or
// WriteFlashError. done may be invoked before Write returns.
func (s *Store) Write(offset uint32, data []byte, done func(WriteResult)) WriteResult {
	sess := s.session
	if sess == nil {
		return WriteNotOngoing
	}
	if data == nil {
		return WriteInvalidNullBytes
	}
	if offset != sess.NextOffset {
		return WriteInvalidStart
	}
	n := uint32(len(data))
	if n == 0 || n%Alignment != 0 || uint64(offset)+uint64(n) > uint64(sess.DeclaredLength) {
		return WriteInvalidNumBytes
	}
	if s.IsBusy() {
		return WriteFlashError
	}
	prefix, hdr := s.prefix, s.header
	if offset < PrefixSize {
		var res WriteResult
		if prefix, hdr, res = s.bufferPrefix(offset, data); res != WriteOK {
			return res
		}
	}

	payloadOffset, payload := offset, data
	if offset < PrefixSize {
		skip := PrefixSize - offset
		if skip > n {
			skip = n
		}
		payloadOffset, payload = PrefixSize, data[skip:]
	}
	crc := CRC16(s.crc, payload)
	complete := offset+n == sess.DeclaredLength

	commit := func(res WriteResult) {
		s.busy = false
		sess.BytesWritten += n
		sess.NextOffset += n
		s.prefix, s.header, s.crc = prefix, hdr, crc
		if done != nil {
			done(res)
		}
	}
	fail := func(err error) {
		s.busy = false
		glog.Errorf("scratchpad: write at %d failed: %v", offset, err)
		if done != nil {
			done(WriteFlashError)
		}
	}
	finish := func() {
		if !complete {
			commit(WriteOK)
			return
		}
		h := *hdr
		h.Seq, h.Type, h.Status = sess.Sequence, TypePresent, StatusNew
		err := area.Write(s.table, s.info.ID, 0, h.Prefix(), func(err error) {
			if err != nil {
				fail(err)
				return
			}
			res := WriteCompletedOK
			if crc != h.CRC {
				res = WriteCompletedError
			}
			commit(res)
			s.session = nil
			glog.Infof("scratchpad: transfer completed, seq %d: %s", h.Seq, res)
			if res == WriteCompletedOK {
				s.transit(StateCompleteValid)
			} else {
				s.transit(StateCompleteInvalid)
			}
		})
		if err != nil {
			fail(err)
		}
	}

	s.busy = true
	if len(payload) == 0 {
		finish()
		return WriteOK
	}
	err := area.Write(s.table, s.info.ID, payloadOffset, payload, func(err error) {
		if err != nil {
			fail(err)
			return
		}
		finish()
	})
	if err != nil {
		s.busy = false
		glog.Errorf("scratchpad: write at %d rejected: %v", offset, err)
		return WriteFlashError
	}
	return WriteOK
}

// bufferPrefix merges data into a copy of the buffered prefix. The
// result is kept by the caller until the block is on flash.
func (s *Store) bufferPrefix(offset uint32, data []byte) ([PrefixSize]byte, *Header, WriteResult) {
	prefix, h := s.prefix, s.header
	end := offset + uint32(copy(prefix[offset:], data))
	if end >= TagSize && !bytes.Equal(prefix[:TagSize], Tag) {
		return s.prefix, s.header, WriteInvalidHeader
	}
	if end == PrefixSize {
		decoded := DecodeHeader(prefix[TagSize:])
		if !decoded.Check(s.info.Size) || decoded.Total() != s.session.DeclaredLength {
			return s.prefix, s.header, WriteInvalidHeader
		}
		h = &decoded
	}
	return prefix, h, WriteOK
}

// Validity derives the validity from flash. It is Unknown while a
// transfer is in progress.
func (s *Store) Validity(done func(Validity, error)) error {
	if s.session != nil {
		done(Unknown, nil)
		return nil
	}
	return s.inspect(func(v Validity, _ Header, err error) {
		done(v, err)
	})
}

// Read reads stored bytes at offset. It is rejected during a transfer
// and when the area does not start with a tag.
func (s *Store) Read(offset uint32, buf []byte, done func(error)) error {
	if s.session != nil {
		return ErrSessionActive
	}
	if s.IsBusy() {
		return ErrBusy
	}
	if uint64(offset)+uint64(len(buf)) > uint64(s.info.Size) {
		return ErrInvalidNumBytes
	}
	tag := make([]byte, TagSize)
	s.busy = true
	err := area.Read(s.table, s.info.ID, 0, tag, func(err error) {
		if err == nil && !bytes.Equal(tag, Tag) {
			err = ErrNoScratchpad
		}
		if err == nil && len(buf) > 0 {
			err = area.Read(s.table, s.info.ID, offset, buf, func(err error) {
				s.busy = false
				done(err)
			})
			if err == nil {
				return
			}
		}
		s.busy = false
		done(err)
	})
	if err != nil {
		s.busy = false
	}
	return err
}

// SetBootable marks a valid scratchpad to be processed by the
// bootloader on the next reboot. Marking a scratchpad already marked or
// processed does nothing.
func (s *Store) SetBootable(done func(error)) error {
	if s.session != nil {
		return ErrSessionActive
	}
	return s.inspect(func(v Validity, h Header, err error) {
		if err == nil && v != Valid {
			err = ErrNotValid
		}
		if err != nil || h.Type == TypeProcess || h.Status != StatusNew {
			done(err)
			return
		}
		word := make([]byte, 4)
		s.busy = true
		err = area.Write(s.table, s.info.ID, typeOffset, word, func(err error) {
			s.busy = false
			if err == nil {
				glog.Infof("scratchpad: seq %d marked for processing", h.Seq)
				s.transit(StateArmed)
			}
			done(err)
		})
		if err != nil {
			s.busy = false
			done(err)
		}
	})
}

// Clear erases the area and discards any open session.
func (s *Store) Clear(done func(error)) error {
	if s.IsBusy() {
		return ErrBusy
	}
	if s.session != nil {
		glog.Infof("scratchpad: transfer seq %d cancelled at %d/%d",
			s.session.Sequence, s.session.BytesWritten, s.session.DeclaredLength)
		s.session = nil
	}
	s.busy = true
	err := area.Erase(s.table, s.info.ID, func(err error) {
		s.busy = false
		if err != nil {
			glog.Errorf("scratchpad: clear failed: %v", err)
		}
		s.transit(StateEmpty)
		if done != nil {
			done(err)
		}
	})
	if err != nil {
		s.busy = false
	}
	return err
}

// Status reports the stored scratchpad and the processed one from the
// header of the stack area.
func (s *Store) Status(done func(Status, error)) error {
	if s.session != nil {
		s.processed(func(p ProcessedStatus, err error) {
			done(Status{Validity: Unknown, Processed: p}, err)
		})
		return nil
	}
	return s.inspect(func(v Validity, h Header, err error) {
		st := Status{Validity: v}
		if err != nil {
			done(st, err)
			return
		}
		if v.Intact() {
			st.Stored = StoredStatus{
				NumBytes: h.Total(),
				CRC:      h.CRC,
				Seq:      h.Seq,
				Type:     StoredPresent,
				Status:   h.Status,
			}
			if h.Type == TypeProcess {
				st.Stored.Type = StoredProcess
			}
		}
		s.processed(func(p ProcessedStatus, err error) {
			st.Processed = p
			done(st, err)
		})
	})
}

func (s *Store) processed(done func(ProcessedStatus, error)) {
	stack, ok := s.table.FindType(area.TypeStack)
	if !ok || !stack.HasHeader {
		done(ProcessedStatus{}, nil)
		return
	}
	err := s.table.StartReadHeader(stack.ID, func(h area.Header, err error) {
		if err != nil || h.IsBlank() {
			done(ProcessedStatus{}, err)
			return
		}
		done(ProcessedStatus{
			NumBytes: h.Length,
			CRC:      h.CRC,
			Seq:      Seq(h.Seq),
			AreaID:   stack.ID,
			Version:  h.Version,
		}, nil)
	})
	if err != nil {
		done(ProcessedStatus{}, err)
	}
}

// inspect reads the prefix and verifies the payload CRC. The state is
// updated from the result.
func (s *Store) inspect(done func(Validity, Header, error)) error {
	if s.IsBusy() {
		return ErrBusy
	}
	prefix := make([]byte, PrefixSize)
	s.busy = true
	finish := func(v Validity, h Header, err error) {
		s.busy = false
		if err == nil {
			s.settle(v, h)
		}
		done(v, h, err)
	}
	err := area.Read(s.table, s.info.ID, 0, prefix, func(err error) {
		if err != nil {
			finish(Unknown, Header{}, err)
			return
		}
		v, h := classify(prefix, s.info.Size)
		if v != Unknown {
			finish(v, h, nil)
			return
		}
		s.scan(h, func(crc uint16, err error) {
			switch {
			case err != nil:
				v = Unknown
			case crc != h.CRC:
				v = InvalidCRC
			case h.Status != StatusNew && h.Status != StatusOK:
				v = Invalid
			default:
				v = Valid
			}
			finish(v, h, err)
		})
	})
	if err != nil {
		s.busy = false
	}
	return err
}

func (s *Store) scan(h Header, done func(uint16, error)) {
	buf := make([]byte, ScanChunk)
	crc := CRCInit
	var step func(offset, remaining uint32)
	step = func(offset, remaining uint32) {
		n := remaining
		if n > ScanChunk {
			n = ScanChunk
		}
		chunk := buf[:n]
		err := area.Read(s.table, s.info.ID, offset, chunk, func(err error) {
			if err != nil {
				done(crc, err)
				return
			}
			crc = CRC16(crc, chunk)
			if remaining -= n; remaining == 0 {
				done(crc, nil)
				return
			}
			step(offset+n, remaining)
		})
		if err != nil {
			done(crc, err)
		}
	}
	step(PrefixSize, h.Length)
}

func (s *Store) settle(v Validity, h Header) {
	if s.session != nil {
		return
	}
	switch {
	case v == Clear || v == NoTag:
		s.transit(StateEmpty)
	case v == Valid && h.Type == TypeProcess && h.Status == StatusNew:
		s.transit(StateArmed)
	case v == Valid:
		s.transit(StateCompleteValid)
	default:
		s.transit(StateCompleteInvalid)
	}
}

func (s *Store) transit(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	glog.V(2).Infof("scratchpad: %s -> %s", from, to)
	if s.OnTransition != nil {
		s.OnTransition(from, to)
	}
}
