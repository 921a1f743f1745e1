package otap

import "strconv"

// Result codes are wire values; they are never converted to errors.

// StartResult is the result of Start.
type StartResult uint8

// Start results.
const (
	StartSuccess StartResult = iota
	StartInvalidState
	StartInvalidNumBytes
	StartInvalidSeq
	StartAccessDenied
)

var startNames = []string{"success", "invalid-state", "invalid-num-bytes", "invalid-seq", "access-denied"}

func (r StartResult) String() string { return resultName(startNames, uint8(r)) }

// BlockResult is the result of Block.
type BlockResult uint8

// Block results.
const (
	BlockSuccess BlockResult = iota
	BlockCompletedOK
	BlockCompletedError
	BlockInvalidState
	BlockNotOngoing
	BlockInvalidStartAddr
	BlockInvalidNumBytes
	BlockInvalidData
)

var blockNames = []string{
	"success", "completed-ok", "completed-error", "invalid-state",
	"not-ongoing", "invalid-start-addr", "invalid-num-bytes", "invalid-data",
}

func (r BlockResult) String() string { return resultName(blockNames, uint8(r)) }

// BootableResult is the result of Bootable.
type BootableResult uint8

// Bootable results.
const (
	BootableSuccess BootableResult = iota
	BootableInvalidState
	BootableNoScratchpad
	BootableAccessDenied
)

var bootableNames = []string{"success", "invalid-state", "no-scratchpad", "access-denied"}

func (r BootableResult) String() string { return resultName(bootableNames, uint8(r)) }

// ClearResult is the result of Clear.
type ClearResult uint8

// Clear results.
const (
	ClearSuccess ClearResult = iota
	ClearInvalidState
	ClearAccessDenied
)

var clearNames = []string{"success", "invalid-state", "access-denied"}

func (r ClearResult) String() string { return resultName(clearNames, uint8(r)) }

// TargetResult is the result of WriteTarget.
type TargetResult uint8

// Target results.
const (
	TargetSuccess TargetResult = iota
	TargetInvalidRole
	TargetInvalidValue
	TargetAccessDenied
)

var targetNames = []string{"success", "invalid-role", "invalid-value", "access-denied"}

func (r TargetResult) String() string { return resultName(targetNames, uint8(r)) }

// ReadResult is the result of ReadBlock.
type ReadResult uint8

// Read results.
const (
	ReadSuccess ReadResult = iota
	ReadInvalidState
	ReadInvalidStartAddr
	ReadInvalidNumBytes
	ReadNoScratchpad
	ReadAccessDenied
)

var readNames = []string{
	"success", "invalid-state", "invalid-start-addr", "invalid-num-bytes",
	"no-scratchpad", "access-denied",
}

func (r ReadResult) String() string { return resultName(readNames, uint8(r)) }

// StackResult is the result of StackStart and StackStop.
type StackResult uint8

// Stack results.
const (
	StackSuccess StackResult = iota
	StackInvalidState
	StackAccessDenied
)

var stackNames = []string{"success", "invalid-state", "access-denied"}

func (r StackResult) String() string { return resultName(stackNames, uint8(r)) }

// RemoteResult is the result of a remote status or update request.
type RemoteResult uint8

// Remote results. Timeout never travels on the mesh; it is produced
// locally when no reply arrived in time.
const (
	RemoteSuccess      RemoteResult = 0
	RemoteInvalidState RemoteResult = 1
	RemoteTimeout      RemoteResult = 3
	RemoteAccessDenied RemoteResult = 4
)

func (r RemoteResult) String() string {
	switch r {
	case RemoteSuccess:
		return "success"
	case RemoteInvalidState:
		return "invalid-state"
	case RemoteTimeout:
		return "timeout"
	case RemoteAccessDenied:
		return "access-denied"
	}
	return "result(" + strconv.Itoa(int(r)) + ")"
}

func resultName(names []string, r uint8) string {
	if int(r) < len(names) {
		return names[r]
	}
	return "result(" + strconv.Itoa(int(r)) + ")"
}
