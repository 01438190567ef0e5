// Package memtarget provides a memory that answers transaction-level
// transport calls, grants direct memory access, and serves debug accesses.
package memtarget

import (
	"log"
	"sync"

	"github.com/sarchlab/tlm/mem/storage"
	"github.com/sarchlab/tlm/mem/tlm"
	"github.com/sarchlab/tlm/sim/hooking"
	"github.com/sarchlab/tlm/sim/modeling"
	"github.com/sarchlab/tlm/sim/timing"
)

// Stats counts what a Comp has done.
type Stats struct {
	TransportCalls  uint64
	TransportErrors uint64
	Grants          uint64
	DebugCalls      uint64
	Invalidations   uint64
}

// A Comp is a memory target. Every transport call costs a fixed latency, and
// every successful call advertises a direct memory grant over the whole
// storage.
type Comp struct {
	*modeling.ComponentBase

	Socket  *tlm.TargetSocket
	Storage *storage.Storage
	Latency timing.VTimeInSec

	engine     timing.EventScheduler
	dmiEnabled bool

	invalidator          *timing.Process
	invalidationCount    int
	invalidationInterval timing.VTimeInSec

	statsLock sync.Mutex
	stats     Stats
}

// BTransport validates and executes a transaction. The checks run in the
// order address, byte enable, burst shape, and the first failure ends the
// call without touching the storage.
func (c *Comp) BTransport(p *tlm.Payload, delay *timing.VTimeInSec) {
	c.count(&c.stats.TransportCalls)

	status := c.validate(p)
	if status != tlm.OKResponse {
		p.ResponseStatus = status
		c.count(&c.stats.TransportErrors)
		c.invokeTransportHook(p, *delay)

		return
	}

	c.execute(p)

	*delay += c.Latency

	if c.dmiEnabled {
		p.DMIAllowed = true
	}

	p.ResponseStatus = tlm.OKResponse

	c.invokeTransportHook(p, *delay)
}

func (c *Comp) validate(p *tlm.Payload) tlm.ResponseStatus {
	if c.Storage.WordIndex(p.Address) >= c.Storage.NumWords() {
		return tlm.AddressErrorResponse
	}

	if p.ByteEnable != nil {
		return tlm.ByteEnableErrorResponse
	}

	if p.Length < 0 ||
		uint64(p.Length) > c.Storage.WordSize() ||
		p.StreamingWidth < p.Length {
		return tlm.BurstErrorResponse
	}

	if len(p.Data) < p.Length {
		log.Panicf("payload %s carries %d bytes but asks for %d",
			p.ID, len(p.Data), p.Length)
	}

	return tlm.OKResponse
}

func (c *Comp) execute(p *tlm.Payload) {
	addr := c.Storage.AlignDown(p.Address)

	var err error

	switch p.Command {
	case tlm.ReadCommand:
		err = c.Storage.Read(addr, p.Bytes())
	case tlm.WriteCommand:
		err = c.Storage.Write(addr, p.Bytes())
	default:
		log.Panicf("unknown command %s", p.Command)
	}

	if err != nil {
		log.Panic(err)
	}
}

func (c *Comp) invokeTransportHook(p *tlm.Payload, delay timing.VTimeInSec) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    tlm.HookPosTransport,
		Item:   p,
		Detail: delay,
	})
}

// GetDirectMemPtr grants read and write access to the whole storage. The
// requested address does not matter. It returns false if the target was
// built without DMI support.
func (c *Comp) GetDirectMemPtr(p *tlm.Payload, dmi *tlm.DMI) bool {
	if !c.dmiEnabled {
		return false
	}

	dmi.Init()
	dmi.AllowReadWrite()
	dmi.Handle = c.Storage.Handle()
	dmi.StartAddress = 0
	dmi.EndAddress = c.Storage.Capacity() - 1
	dmi.ReadLatency = c.Latency
	dmi.WriteLatency = c.Latency
	dmi.WordSize = c.Storage.WordSize()

	c.count(&c.stats.Grants)

	c.invokeDMIHook(tlm.HookPosDMIGranted, dmi.StartAddress, dmi.EndAddress)

	return true
}

// TransportDbg reads or writes the storage immediately, starting at the word
// that holds the address. The transfer is clamped to what remains of the
// storage from that word, and the number of bytes moved is returned. The
// response status is left untouched.
func (c *Comp) TransportDbg(p *tlm.Payload) int {
	c.count(&c.stats.DebugCalls)

	n := p.Length
	if n > len(p.Data) {
		n = len(p.Data)
	}

	addr := c.Storage.AlignDown(p.Address)

	remaining := c.Storage.Remaining(addr)
	if uint64(n) > remaining {
		n = int(remaining)
	}

	if n <= 0 {
		return 0
	}

	var err error

	switch p.Command {
	case tlm.ReadCommand:
		err = c.Storage.Read(addr, p.Data[:n])
	case tlm.WriteCommand:
		err = c.Storage.Write(addr, p.Data[:n])
	default:
		log.Panicf("unknown command %s", p.Command)
	}

	if err != nil {
		log.Panic(err)
	}

	return n
}

// InvalidateAll revokes every grant issued so far and tells the bound
// initiator.
func (c *Comp) InvalidateAll() {
	c.Storage.Revoke()
	c.count(&c.stats.Invalidations)

	start, end := uint64(0), c.Storage.Capacity()-1
	c.invokeDMIHook(tlm.HookPosDMIInvalidated, start, end)
	c.Socket.InvalidateDirectMemPtr(start, end)
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

// Start begins the periodic invalidation.
func (c *Comp) Start() {
	if c.invalidationCount <= 0 {
		return
	}

	c.invalidator.Start()
}

// Stop ends the periodic invalidation if it is still waiting.
func (c *Comp) Stop() {
	c.invalidator.Terminate()
}

func (c *Comp) invalidate(p *timing.Process) error {
	for i := 0; i < c.invalidationCount; i++ {
		p.Wait(c.invalidationInterval)
		c.InvalidateAll()
	}

	return nil
}

// Stats returns the counters of the target.
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

// Capacity returns the size of the storage in bytes.
func (c *Comp) Capacity() uint64 {
	return c.Storage.Capacity()
}

// DMIEnabled tells if the target grants direct memory access.
func (c *Comp) DMIEnabled() bool {
	return c.dmiEnabled
}
