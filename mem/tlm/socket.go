package tlm

import (
	"fmt"

	"github.com/sarchlab/tlm/sim/timing"
)

// An InitiatorSocket is the initiator's end of a point-to-point binding.
type InitiatorSocket struct {
	name   string
	owner  BackwardTransport
	target *TargetSocket
}

// NewInitiatorSocket creates a socket owned by an initiator.
func NewInitiatorSocket(name string, owner BackwardTransport) *InitiatorSocket {
	return &InitiatorSocket{name: name, owner: owner}
}

// A TargetSocket is the target's end of a point-to-point binding.
type TargetSocket struct {
	name      string
	owner     ForwardTransport
	initiator *InitiatorSocket
}

// NewTargetSocket creates a socket owned by a target.
func NewTargetSocket(name string, owner ForwardTransport) *TargetSocket {
	return &TargetSocket{name: name, owner: owner}
}

// Name returns the name of the socket.
func (s *InitiatorSocket) Name() string {
	return s.name
}

// Name returns the name of the socket.
func (s *TargetSocket) Name() string {
	return s.name
}

// Bind connects the initiator socket to a target socket. A socket can only
// be bound once.
func (s *InitiatorSocket) Bind(t *TargetSocket) {
	if s.target != nil {
		panic(fmt.Sprintf("socket %s already bound to %s, now binding to %s",
			s.name, s.target.name, t.name))
	}

	if t.initiator != nil {
		panic(fmt.Sprintf("socket %s already bound to %s, now binding to %s",
			t.name, t.initiator.name, s.name))
	}

	s.target = t
	t.initiator = s
}

// IsBound tells if the socket has been bound.
func (s *InitiatorSocket) IsBound() bool {
	return s.target != nil
}

// IsBound tells if the socket has been bound.
func (s *TargetSocket) IsBound() bool {
	return s.initiator != nil
}

// BTransport forwards a blocking transport call to the bound target.
func (s *InitiatorSocket) BTransport(p *Payload, delay *timing.VTimeInSec) {
	s.mustBeBound()
	s.target.owner.BTransport(p, delay)
}

// GetDirectMemPtr forwards a DMI request to the bound target.
func (s *InitiatorSocket) GetDirectMemPtr(p *Payload, dmi *DMI) bool {
	s.mustBeBound()
	return s.target.owner.GetDirectMemPtr(p, dmi)
}

// TransportDbg forwards a debug transport call to the bound target.
func (s *InitiatorSocket) TransportDbg(p *Payload) int {
	s.mustBeBound()
	return s.target.owner.TransportDbg(p)
}

// InvalidateDirectMemPtr forwards an invalidation to the bound initiator. It
// does nothing if no initiator is bound.
func (s *TargetSocket) InvalidateDirectMemPtr(start, end uint64) {
	if s.initiator == nil {
		return
	}

	s.initiator.owner.InvalidateDirectMemPtr(start, end)
}

func (s *InitiatorSocket) mustBeBound() {
	if s.target == nil {
		panic(fmt.Sprintf("socket %s is not bound", s.name))
	}
}
