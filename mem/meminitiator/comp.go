// Package meminitiator provides a requester that reaches a memory target
// either through transport calls or through a cached direct memory grant.
package meminitiator

import (
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/sarchlab/tlm/mem/tlm"
	"github.com/sarchlab/tlm/sim/hooking"
	"github.com/sarchlab/tlm/sim/modeling"
	"github.com/sarchlab/tlm/sim/timing"
)

// GrantState is the state of the cached direct memory grant.
type GrantState int

// The grant states.
const (
	GrantAbsent GrantState = iota
	GrantValid
)

func (s GrantState) String() string {
	if s == GrantValid {
		return "VALID"
	}

	return "ABSENT"
}

// A Waiter suspends the caller for a simulated duration.
type Waiter interface {
	Wait(d timing.VTimeInSec)
}

// A Program is what the initiator runs once started.
type Program func(c *Comp) error

// Stats counts what a Comp has done.
type Stats struct {
	TransportAccesses     uint64
	DirectAccesses        uint64
	DebugAccesses         uint64
	GrantsAccepted        uint64
	InvalidationsReceived uint64
}

// A Comp is an initiator that holds at most one direct memory grant. It uses
// the grant whenever it covers an access and falls back to transport calls
// otherwise.
type Comp struct {
	*modeling.ComponentBase

	Socket *tlm.InitiatorSocket

	engine  timing.EventScheduler
	process *timing.Process
	waiter  Waiter
	program Program

	dmi      tlm.DMI
	dmiValid bool

	injectError   bool
	injectErrorAt uint64

	statsLock sync.Mutex
	stats     Stats
}

// Start schedules the program to begin at the current time.
func (c *Comp) Start() {
	c.process.Start()
}

// Stop ends the program if it is still waiting.
func (c *Comp) Stop() {
	c.process.Terminate()
}

// Finished tells if the program has returned.
func (c *Comp) Finished() bool {
	return c.process.Finished()
}

// Err returns the error that ended the program, if any.
func (c *Comp) Err() error {
	return c.process.Err()
}

// Issue performs one access and waits for its latency. The fast path is
// taken when the cached grant is valid, permits the command and covers the
// whole range. A rejected transaction is returned as a *ProtocolError.
func (c *Comp) Issue(
	cmd tlm.Command,
	addr uint64,
	buf []byte,
	length int,
) error {
	if length < 0 || len(buf) < length {
		return errors.Errorf("buffer of %d bytes cannot carry %d bytes",
			len(buf), length)
	}

	if c.canAccessDirectly(cmd, addr, length) {
		c.accessDirectly(cmd, addr, buf[:length])
		return nil
	}

	return c.accessByTransport(cmd, addr, buf, length)
}

func (c *Comp) canAccessDirectly(
	cmd tlm.Command,
	addr uint64,
	length int,
) bool {
	if c.GrantState() != GrantValid {
		return false
	}

	if !c.dmi.Covers(addr, length) {
		c.dmiValid = false
		return false
	}

	return c.dmi.Permits(cmd)
}

func (c *Comp) accessDirectly(cmd tlm.Command, addr uint64, data []byte) {
	window := c.dmi.Window(addr, len(data))

	switch cmd {
	case tlm.ReadCommand:
		copy(data, window)
	case tlm.WriteCommand:
		copy(window, data)
	default:
		log.Panicf("unknown command %s", cmd)
	}

	latency := c.dmi.Latency(cmd)
	c.count(&c.stats.DirectAccesses)

	c.invokeAccessHook(tlm.AccessInfo{
		Path:    tlm.DMIPath,
		Command: cmd,
		Address: addr,
		Data:    cloneBytes(data),
		Status:  tlm.OKResponse,
		Time:    c.engine.Now(),
		Delay:   latency,
	})

	c.waiter.Wait(latency)
}

func (c *Comp) accessByTransport(
	cmd tlm.Command,
	addr uint64,
	buf []byte,
	length int,
) error {
	builder := tlm.PayloadBuilder{}.
		WithCommand(cmd).
		WithAddress(addr).
		WithData(buf).
		WithLength(length)

	if c.injectError && addr >= c.injectErrorAt {
		builder = builder.WithStreamingWidth(2)
	}

	p := builder.Build()
	delay := timing.VTimeInSec(0)

	c.Socket.BTransport(p, &delay)
	c.count(&c.stats.TransportAccesses)

	if p.ResponseStatus == tlm.IncompleteResponse {
		log.Panicf("payload %s returned without a response status", p.ID)
	}

	if p.IsResponseError() {
		c.invokeAccessHook(c.transportAccessInfo(p, delay))
		return errors.Wrapf(newProtocolError(p), "%s 0x%x", cmd, addr)
	}

	if p.DMIAllowed {
		c.acquireGrant(p)
	}

	c.invokeAccessHook(c.transportAccessInfo(p, delay))

	c.waiter.Wait(delay)

	return nil
}

func (c *Comp) transportAccessInfo(
	p *tlm.Payload,
	delay timing.VTimeInSec,
) tlm.AccessInfo {
	return tlm.AccessInfo{
		PayloadID: p.ID,
		Path:      tlm.TransportPath,
		Command:   p.Command,
		Address:   p.Address,
		Data:      cloneBytes(p.Bytes()),
		Status:    p.ResponseStatus,
		Time:      c.engine.Now(),
		Delay:     delay,
	}
}

func (c *Comp) acquireGrant(p *tlm.Payload) {
	var dmi tlm.DMI
	if !c.Socket.GetDirectMemPtr(p, &dmi) {
		return
	}

	c.dmi = dmi
	c.dmiValid = true
	c.count(&c.stats.GrantsAccepted)

	c.invokeDMIHook(tlm.HookPosDMIGranted, dmi.StartAddress, dmi.EndAddress)
}

// InvalidateDirectMemPtr drops the cached grant. The bounds are ignored and
// the whole grant is dropped.
func (c *Comp) InvalidateDirectMemPtr(start, end uint64) {
	c.dmiValid = false
	c.count(&c.stats.InvalidationsReceived)

	c.invokeDMIHook(tlm.HookPosDMIInvalidated, start, end)
}

// GrantState returns the state of the cached grant. A grant whose handle has
// been revoked counts as absent even before the notification arrives.
func (c *Comp) GrantState() GrantState {
	if c.dmiValid && c.dmi.IsValid() {
		return GrantValid
	}

	return GrantAbsent
}

// Grant returns a copy of the cached grant.
func (c *Comp) Grant() tlm.DMI {
	return c.dmi
}

// Debug performs a debug access through the target and returns the number
// of bytes moved. It takes no simulated time.
func (c *Comp) Debug(cmd tlm.Command, addr uint64, buf []byte) int {
	p := tlm.PayloadBuilder{}.
		WithCommand(cmd).
		WithAddress(addr).
		WithData(buf).
		Build()

	n := c.Socket.TransportDbg(p)
	c.count(&c.stats.DebugAccesses)

	if c.NumHooks() > 0 {
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    tlm.HookPosDebugAccess,
			Item: tlm.DebugAccessInfo{
				Command:     cmd,
				Address:     addr,
				Requested:   len(buf),
				Transferred: n,
				Data:        cloneBytes(buf[:n]),
				Time:        c.engine.Now(),
			},
		})
	}

	return n
}

// Stats returns the counters of the initiator.
func (c *Comp) Stats() Stats {
	c.statsLock.Lock()
	defer c.statsLock.Unlock()

	return c.stats
}

func (c *Comp) count(counter *uint64) {
	c.statsLock.Lock()
	*counter++
	c.statsLock.Unlock()
}

func (c *Comp) invokeAccessHook(info tlm.AccessInfo) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    tlm.HookPosAccess,
		Item:   info,
	})
}

func (c *Comp) invokeDMIHook(pos *hooking.HookPos, start, end uint64) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item: tlm.DMIInfo{
			StartAddress: start,
			EndAddress:   end,
			Time:         c.engine.Now(),
		},
	})
}

func (c *Comp) run(p *timing.Process) error {
	return c.program(c)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)

	return out
}
