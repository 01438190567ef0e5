package meminitiator

import (
	"github.com/sarchlab/tlm/mem/tlm"
	"github.com/sarchlab/tlm/sim/modeling"
	"github.com/sarchlab/tlm/sim/timing"
)

// Builder can build initiators.
type Builder struct {
	engine        timing.EventScheduler
	program       Program
	traffic       Traffic
	injectError   bool
	injectErrorAt uint64
}

// MakeBuilder returns a new Builder.
func MakeBuilder() Builder {
	return Builder{
		traffic: DefaultTraffic(),
	}
}

// WithEngine sets the engine that the initiator runs on.
func (b Builder) WithEngine(engine timing.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithTraffic sets the accesses of the default program.
func (b Builder) WithTraffic(t Traffic) Builder {
	b.traffic = t
	return b
}

// WithProgram replaces the default program.
func (b Builder) WithProgram(p Program) Builder {
	b.program = p
	return b
}

// WithErrorInjectedFrom makes transport calls at or above the address use a
// streaming width of 2, which targets reject as a burst error.
func (b Builder) WithErrorInjectedFrom(addr uint64) Builder {
	b.injectError = true
	b.injectErrorAt = addr

	return b
}

// Build creates an initiator.
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		panic("initiator requires an engine")
	}

	c := &Comp{
		ComponentBase: modeling.NewComponentBase(name),
		engine:        b.engine,
		program:       b.program,
		injectError:   b.injectError,
		injectErrorAt: b.injectErrorAt,
	}

	if c.program == nil {
		c.program = b.traffic.Program()
	}

	c.Socket = tlm.NewInitiatorSocket(modeling.BuildName(name, "Socket"), c)
	c.process = timing.NewProcess(modeling.BuildName(name, "Program"), b.engine, c.run)
	c.waiter = c.process

	return c
}
