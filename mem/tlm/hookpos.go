package tlm

import (
	"github.com/sarchlab/tlm/sim/hooking"
	"github.com/sarchlab/tlm/sim/timing"
)

// Positions at which initiators and targets invoke their hooks.
var (
	// HookPosAccess is invoked after an initiator completes an access. The
	// item is an AccessInfo.
	HookPosAccess = &hooking.HookPos{Name: "Access"}

	// HookPosDebugAccess is invoked after a debug access. The item is a
	// DebugAccessInfo.
	HookPosDebugAccess = &hooking.HookPos{Name: "DebugAccess"}

	// HookPosDMIGranted is invoked when a grant is issued or accepted. The
	// item is a DMIInfo.
	HookPosDMIGranted = &hooking.HookPos{Name: "DMIGranted"}

	// HookPosDMIInvalidated is invoked when grants are revoked. The item is a
	// DMIInfo.
	HookPosDMIInvalidated = &hooking.HookPos{Name: "DMIInvalidated"}

	// HookPosTransport is invoked by a target after each transport call. The
	// item is the payload and the detail is the delay after the call.
	HookPosTransport = &hooking.HookPos{Name: "Transport"}
)

// AccessPath tells how an access reached the memory.
type AccessPath string

// The two access paths.
const (
	TransportPath AccessPath = "trans"
	DMIPath       AccessPath = "dmi"
)

// AccessInfo describes a completed access.
type AccessInfo struct {
	PayloadID string
	Path      AccessPath
	Command   Command
	Address   uint64
	Data      []byte
	Status    ResponseStatus
	Time      timing.VTimeInSec
	Delay     timing.VTimeInSec
}

// DebugAccessInfo describes a completed debug access.
type DebugAccessInfo struct {
	Command     Command
	Address     uint64
	Requested   int
	Transferred int
	Data        []byte
	Time        timing.VTimeInSec
}

// DMIInfo describes a grant or an invalidation.
type DMIInfo struct {
	StartAddress uint64
	EndAddress   uint64
	Time         timing.VTimeInSec
}
