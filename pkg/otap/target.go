package otap

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role of the node in the mesh.
type Role uint8

// Roles.
const (
	RoleNode Role = iota
	RoleRouter
	RoleSink
)

var roleNames = []string{"node", "router", "sink"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "role(" + strconv.Itoa(int(r)) + ")"
}

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	for n, name := range roleNames {
		if strings.EqualFold(s, name) {
			return Role(n), nil
		}
	}
	return RoleNode, fmt.Errorf("unknown role %q", s)
}

// Action tells the network what to do with the target scratchpad.
type Action uint8

// Actions.
const (
	ActionNoOTAP                     Action = 0
	ActionPropagateOnly              Action = 1
	ActionPropagateAndProcess        Action = 2
	ActionPropagateAndProcessDelayed Action = 3
	ActionLegacy                     Action = 5
)

func (a Action) String() string {
	switch a {
	case ActionNoOTAP:
		return "no-otap"
	case ActionPropagateOnly:
		return "propagate-only"
	case ActionPropagateAndProcess:
		return "propagate-and-process"
	case ActionPropagateAndProcessDelayed:
		return "propagate-and-process-with-delay"
	case ActionLegacy:
		return "legacy"
	}
	return "action(" + strconv.Itoa(int(a)) + ")"
}

// ParseAction parses the name or the number of an action.
func ParseAction(s string) (Action, error) {
	for _, a := range []Action{ActionNoOTAP, ActionPropagateOnly, ActionPropagateAndProcess,
		ActionPropagateAndProcessDelayed, ActionLegacy} {
		if strings.EqualFold(s, a.String()) {
			return a, nil
		}
	}
	if v, err := strconv.ParseUint(s, 0, 8); err == nil && Action(v).IsValid() {
		return Action(v), nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// IsValid tells whether a is a known action.
func (a Action) IsValid() bool {
	switch a {
	case ActionNoOTAP, ActionPropagateOnly, ActionPropagateAndProcess,
		ActionPropagateAndProcessDelayed, ActionLegacy:
		return true
	}
	return false
}

// Propagates tells whether a needs a target sequence.
func (a Action) Propagates() bool {
	return a == ActionPropagateOnly || a.Processes()
}

// Processes tells whether a installs the target, which only a sink may
// decide.
func (a Action) Processes() bool {
	return a == ActionPropagateAndProcess || a == ActionPropagateAndProcessDelayed
}

// DelayUnit is the unit in bits 6-7 of a Delay.
type DelayUnit uint8

// Delay units.
const (
	DelayMinutes DelayUnit = 1
	DelayHours   DelayUnit = 2
	DelayDays    DelayUnit = 3
)

// Delay is the processing delay parameter: value in bits 0-5, unit in
// bits 6-7.
type Delay uint8

// MaxDelayValue is the largest value encodable in a Delay.
const MaxDelayValue = 0x3f

// NewDelay encodes a delay.
func NewDelay(value uint8, unit DelayUnit) Delay {
	return Delay(value&MaxDelayValue) | Delay(unit&3)<<6
}

// Value is the amount of units.
func (d Delay) Value() uint8 {
	return uint8(d) & MaxDelayValue
}

// Unit is the time unit.
func (d Delay) Unit() DelayUnit {
	return DelayUnit(d >> 6)
}

// Valid tells whether the delay is non-zero with a known unit.
func (d Delay) Valid() bool {
	return d.Value() != 0 && d.Unit() != 0
}

// Duration converts the delay, zero if invalid.
func (d Delay) Duration() time.Duration {
	var unit time.Duration
	switch d.Unit() {
	case DelayMinutes:
		unit = time.Minute
	case DelayHours:
		unit = time.Hour
	case DelayDays:
		unit = 24 * time.Hour
	}
	return time.Duration(d.Value()) * unit
}

func (d Delay) String() string {
	if !d.Valid() {
		return "invalid-delay(" + strconv.Itoa(int(d)) + ")"
	}
	return d.Duration().String()
}

// ParseDelay parses "<n>m", "<n>h" or "<n>d".
func ParseDelay(s string) (Delay, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid delay %q", s)
	}
	var unit DelayUnit
	switch s[len(s)-1] {
	case 'm':
		unit = DelayMinutes
	case 'h':
		unit = DelayHours
	case 'd':
		unit = DelayDays
	default:
		return 0, fmt.Errorf("invalid delay unit in %q", s)
	}
	v, err := strconv.ParseUint(s[:len(s)-1], 10, 8)
	if err != nil || v == 0 || v > MaxDelayValue {
		return 0, fmt.Errorf("invalid delay value in %q", s)
	}
	return NewDelay(uint8(v), unit), nil
}

// Target is the scratchpad the network should converge to and what to
// do with it.
type Target struct {
	Sequence uint8  `cbor:"1,keyasint"`
	CRC      uint16 `cbor:"2,keyasint"`
	Action   Action `cbor:"3,keyasint"`
	// Param is the Delay for ActionPropagateAndProcessDelayed.
	Param uint8 `cbor:"4,keyasint"`
}

// Delay interprets Param.
func (t Target) Delay() Delay {
	return Delay(t.Param)
}

func (t Target) String() string {
	s := fmt.Sprintf("seq=%d crc=0x%04x action=%s", t.Sequence, t.CRC, t.Action)
	if t.Action == ActionPropagateAndProcessDelayed {
		s += " delay=" + t.Delay().String()
	}
	return s
}

// checkTarget validates t against the current target for a node of
// role.
func checkTarget(t, current Target, role Role) TargetResult {
	if !t.Action.IsValid() {
		return TargetInvalidValue
	}
	if t.Action.Processes() && role != RoleSink {
		return TargetInvalidRole
	}
	if t.Action.Propagates() && t.Sequence == 0 {
		return TargetInvalidValue
	}
	if t.Action == ActionPropagateAndProcessDelayed {
		if !t.Delay().Valid() {
			return TargetInvalidValue
		}
		if current.Action == ActionPropagateAndProcessDelayed && current.Param == t.Param {
			return TargetInvalidValue
		}
	}
	return TargetSuccess
}
