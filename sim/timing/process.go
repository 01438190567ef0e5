package timing

import (
	"fmt"
	"log"
	"reflect"
)

// ProcessFunc is the body of a Process. It runs from the process start until
// it returns, suspending itself with Process.Wait.
type ProcessFunc func(p *Process) error

// A Process is a cooperative thread of control driven by an Engine.
//
// The body runs on its own goroutine, but it only executes while the engine
// is blocked handling one of the process's resume events. Control passes
// back to the engine when the body calls Wait or returns. Hence, at any
// moment either the engine or exactly one process body is running.
type Process struct {
	name   string
	engine EventScheduler
	body   ProcessFunc

	resume chan struct{}
	kill   chan struct{}
	yield  chan processYield

	startScheduled bool
	started        bool
	finished       bool
	err            error
}

type processYield struct {
	done       bool
	err        error
	panicked   bool
	panicValue interface{}
}

// processTerminated unwinds the body of a terminated process.
type processTerminated struct{}

// resumeEvent wakes up a waiting process.
type resumeEvent struct {
	*EventBase
}

// NewProcess creates a process that has not started yet.
func NewProcess(name string, engine EventScheduler, body ProcessFunc) *Process {
	return &Process{
		name:   name,
		engine: engine,
		body:   body,
		resume: make(chan struct{}),
		kill:   make(chan struct{}),
		yield:  make(chan processYield),
	}
}

// Name returns the name of the process.
func (p *Process) Name() string {
	return p.name
}

// Start schedules the body to begin at the current simulation time.
func (p *Process) Start() {
	if p.startScheduled {
		log.Panicf("process %s already started", p.name)
	}

	p.startScheduled = true
	p.scheduleResume(p.engine.Now())
}

// Finished tells if the body has returned.
func (p *Process) Finished() bool {
	return p.finished
}

// Err returns the error that the body returned, if any.
func (p *Process) Err() error {
	return p.err
}

// Now returns the current simulation time.
func (p *Process) Now() VTimeInSec {
	return p.engine.Now()
}

// Wait suspends the body until d has elapsed in simulated time. It must only
// be called from the body of the process.
func (p *Process) Wait(d VTimeInSec) {
	if d < 0 {
		log.Panicf("process %s cannot wait for a negative duration", p.name)
	}

	p.scheduleResume(p.engine.Now() + d)

	p.yield <- processYield{}

	select {
	case <-p.resume:
	case <-p.kill:
		panic(processTerminated{})
	}
}

// Terminate ends a process that is suspended in Wait, typically after the
// engine stopped on an error. The body unwinds from Wait, its deferred
// functions run, and its goroutine exits. Pending resume events of the
// process are ignored afterwards. It must not be called from the body.
func (p *Process) Terminate() {
	if p.finished {
		return
	}

	p.finished = true

	if !p.started {
		return
	}

	close(p.kill)
	<-p.yield
}

// Handle resumes the body and blocks until the body yields again.
func (p *Process) Handle(e Event) error {
	if _, ok := e.(*resumeEvent); !ok {
		log.Panicf("process %s cannot handle event of type %s",
			p.name, reflect.TypeOf(e))
	}

	if p.finished {
		return nil
	}

	if !p.started {
		p.started = true
		go p.run()
	} else {
		p.resume <- struct{}{}
	}

	y := <-p.yield

	if y.panicked {
		p.finished = true
		panic(y.panicValue)
	}

	if y.done {
		p.finished = true
		p.err = y.err

		if y.err != nil {
			return fmt.Errorf("process %s: %w", p.name, y.err)
		}
	}

	return nil
}

func (p *Process) run() {
	y := processYield{done: true}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(processTerminated); ok {
				p.yield <- y
				return
			}

			y.panicked = true
			y.panicValue = r
		}

		p.yield <- y
	}()

	y.err = p.body(p)
}

func (p *Process) scheduleResume(t VTimeInSec) {
	evt := &resumeEvent{EventBase: NewEventBase(t, p)}
	p.engine.Schedule(evt)
}
