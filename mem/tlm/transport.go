package tlm

import "github.com/sarchlab/tlm/sim/timing"

// ForwardTransport is implemented by targets and called by initiators.
type ForwardTransport interface {
	// BTransport executes the payload and sets its response status before
	// returning. The target adds its service time to delay.
	BTransport(p *Payload, delay *timing.VTimeInSec)

	// GetDirectMemPtr asks for a direct memory grant. It returns false if no
	// grant is given.
	GetDirectMemPtr(p *Payload, dmi *DMI) bool

	// TransportDbg reads or writes memory without timing, response status or
	// side effects and returns the number of bytes transferred.
	TransportDbg(p *Payload) int
}

// BackwardTransport is implemented by initiators and called by targets.
type BackwardTransport interface {
	// InvalidateDirectMemPtr tells the initiator that grants covering
	// [start, end] must no longer be used.
	InvalidateDirectMemPtr(start, end uint64)
}
