// Package msap is the management service access point of the node API:
// stack control, scratchpad transfer, target and remote status requests
// carried as link frames.
package msap

import (
	"strconv"

	"github.com/robotalks/meshota/pkg/link"
)

// Request function codes. The confirmation of a request uses the same
// code with link.ConfirmFlag set.
const (
	FuncStackStart        byte = 0x05
	FuncStackStop         byte = 0x06
	FuncScratchpadStart   byte = 0x17
	FuncScratchpadBlock   byte = 0x18
	FuncScratchpadStatus  byte = 0x19
	FuncScratchpadBoot    byte = 0x1a
	FuncScratchpadClear   byte = 0x1b
	FuncRemoteStatus      byte = 0x1c
	FuncRemoteUpdate      byte = 0x1d
	FuncTargetWrite       byte = 0x26
	FuncTargetRead        byte = 0x27
	FuncScratchpadBlockRd byte = 0x28
)

// FuncRemoteStatusInd is the indication carrying a remote status.
const FuncRemoteStatusInd byte = 0x9e

var funcNames = map[byte]string{
	FuncStackStart:        "stack-start",
	FuncStackStop:         "stack-stop",
	FuncScratchpadStart:   "scratchpad-start",
	FuncScratchpadBlock:   "scratchpad-block",
	FuncScratchpadStatus:  "scratchpad-status",
	FuncScratchpadBoot:    "scratchpad-bootable",
	FuncScratchpadClear:   "scratchpad-clear",
	FuncRemoteStatus:      "remote-status",
	FuncRemoteUpdate:      "remote-update",
	FuncTargetWrite:       "target-write",
	FuncTargetRead:        "target-read",
	FuncScratchpadBlockRd: "scratchpad-block-read",
	FuncRemoteStatusInd:   "remote-status-ind",
}

// FuncName names a function code.
func FuncName(f byte) string {
	if name, ok := funcNames[f]; ok {
		return name
	}
	if name, ok := funcNames[f&^link.ConfirmFlag]; ok {
		return name + "-cnf"
	}
	return "func(0x" + strconv.FormatUint(uint64(f), 16) + ")"
}

// Confirm returns the confirmation code of request f.
func Confirm(f byte) byte {
	return f | link.ConfirmFlag
}
