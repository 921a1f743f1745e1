package node

import (
	"strconv"

	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/meshota/pkg/mesh"
)

// MachineAddress derives a node address from the unique ID of the
// machine. The address stays below the broadcast range and is never
// Unspecified.
func MachineAddress() (mesh.Address, error) {
	id, err := machineid.ProtectedID("meshota")
	if err != nil {
		return mesh.Unspecified, err
	}
	v, err := strconv.ParseUint(id[:8], 16, 32)
	if err != nil {
		return mesh.Unspecified, err
	}
	addr := mesh.Address(v & 0x00ffffff)
	if addr == mesh.Unspecified {
		addr = 1
	}
	return addr, nil
}
