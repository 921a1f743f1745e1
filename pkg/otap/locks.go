package otap

import (
	"fmt"
	"strconv"
	"strings"
)

// LockBits are feature lock bits. A set bit leaves the feature
// unlocked, so erased storage (all ones) locks nothing.
type LockBits uint32

// Features guarded by lock bits.
const (
	LockDataTx           LockBits = 0x00000001
	LockStackStart       LockBits = 0x00000004
	LockStackStop        LockBits = 0x00000008
	LockScratchpadStart  LockBits = 0x00002000
	LockScratchpadStatus LockBits = 0x00008000
	LockRemoteAPITx      LockBits = 0x20000000
	LockOTAP             LockBits = 0x80000000
	AllUnlocked          LockBits = 0xffffffff
)

var lockNames = map[string]LockBits{
	"data-tx":           LockDataTx,
	"stack-start":       LockStackStart,
	"stack-stop":        LockStackStop,
	"scratchpad-start":  LockScratchpadStart,
	"scratchpad-status": LockScratchpadStatus,
	"remote-api-tx":     LockRemoteAPITx,
	"otap":              LockOTAP,
}

// Locks is the lock state of a node. Lock bits only take effect once a
// lock key has been set.
type Locks struct {
	Bits   LockBits `cbor:"1,keyasint" yaml:"bits"`
	KeySet bool     `cbor:"2,keyasint" yaml:"key_set"`
}

// Unlocked is the lock state with no key.
func Unlocked() Locks {
	return Locks{Bits: AllUnlocked}
}

// Permits tells whether none of the features f are locked.
func (l Locks) Permits(f LockBits) bool {
	return !l.KeySet || l.Bits&f == f
}

// Lock returns the lock state with features f locked and the key set.
func (l Locks) Lock(f LockBits) Locks {
	return Locks{Bits: l.Bits &^ f, KeySet: true}
}

// ParseLockedFeatures parses a comma separated list of feature names
// into the lock bits locking them, e.g. "scratchpad-start,otap".
func ParseLockedFeatures(s string) (LockBits, error) {
	bits := AllUnlocked
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f, ok := lockNames[name]
		if !ok {
			return bits, fmt.Errorf("unknown lock feature %q", name)
		}
		bits &^= f
	}
	return bits, nil
}

// String implements fmt.Stringer.
func (b LockBits) String() string {
	return "0x" + strconv.FormatUint(uint64(b), 16)
}
