// Package platform assembles a complete simulation: one initiator bound to
// one memory target, driven by a serial engine and observed by tracers and
// an optional monitor.
package platform

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tlm/config"
	"github.com/sarchlab/tlm/datarecording"
	"github.com/sarchlab/tlm/mem/meminitiator"
	"github.com/sarchlab/tlm/mem/memtarget"
	"github.com/sarchlab/tlm/mem/trace"
	"github.com/sarchlab/tlm/monitoring"
	"github.com/sarchlab/tlm/sim/hooking"
	"github.com/sarchlab/tlm/sim/simulation"
	"github.com/sarchlab/tlm/sim/timing"
)

// A Platform is a built simulation that is ready to run.
type Platform struct {
	Engine     *timing.SerialEngine
	Simulation *simulation.Simulation
	Memory     *memtarget.Comp
	Initiator  *meminitiator.Comp
	Monitor    *monitoring.Monitor

	recorder    datarecording.DataRecorder
	ownRecorder bool
	progressBar *monitoring.ProgressBar
}

// Builder can build platforms.
type Builder struct {
	cfg      *config.Config
	logger   logrus.FieldLogger
	recorder datarecording.DataRecorder
	program  meminitiator.Program
}

// MakeBuilder returns a Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg:    config.Default(),
		logger: logrus.StandardLogger(),
	}
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithLogger sets the logger that the log tracer and the event logger write
// to.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithRecorder records accesses into an existing recorder instead of the
// database named in the configuration. The platform does not close it.
func (b Builder) WithRecorder(r datarecording.DataRecorder) Builder {
	b.recorder = r
	return b
}

// WithProgram replaces the traffic that the initiator runs.
func (b Builder) WithProgram(p meminitiator.Program) Builder {
	b.program = p
	return b
}

// Build creates the platform.
func (b Builder) Build() (*Platform, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		Engine: timing.NewSerialEngine(),
	}
	p.Simulation = simulation.NewSimulation(p.Engine)

	p.Memory = b.buildMemory(p.Engine)
	p.Initiator = b.buildInitiator(p.Engine)
	p.Initiator.Socket.Bind(p.Memory.Socket)

	p.Simulation.RegisterComponent(p.Memory)
	p.Simulation.RegisterComponent(p.Initiator)

	b.attachTracers(p)

	if b.cfg.Monitor.Enabled {
		b.attachMonitor(p)
	}

	return p, nil
}

func (b Builder) buildMemory(engine timing.EventScheduler) *memtarget.Comp {
	mc := b.cfg.Memory

	return memtarget.MakeBuilder().
		WithEngine(engine).
		WithFreq(timing.Freq(mc.FreqMHz) * timing.MHz).
		WithLatency(mc.LatencyCycles).
		WithNumWords(mc.NumWords).
		WithSeed(b.cfg.Seed).
		WithDMI(mc.DMI).
		WithInvalidation(mc.InvalidationCount, mc.InvalidationInterval).
		Build("Memory")
}

func (b Builder) buildInitiator(engine timing.EventScheduler) *meminitiator.Comp {
	tc := b.cfg.Traffic

	traffic := meminitiator.DefaultTraffic()
	traffic.StartAddress = tc.StartAddress
	traffic.EndAddress = tc.EndAddress
	traffic.Stride = tc.Stride
	traffic.DumpLength = tc.DumpLength
	traffic.Seed = b.cfg.Seed

	builder := meminitiator.MakeBuilder().
		WithEngine(engine).
		WithTraffic(traffic).
		WithProgram(b.program)

	if tc.InjectErrorAt != nil {
		builder = builder.WithErrorInjectedFrom(*tc.InjectErrorAt)
	}

	return builder.Build("Initiator")
}

func (b Builder) attachTracers(p *Platform) {
	if b.cfg.Trace.Log {
		tracer := trace.NewLogTracer(b.logger)
		p.Initiator.AcceptHook(tracer)
		p.Memory.AcceptHook(tracer)
	}

	if b.cfg.Trace.Events {
		p.Engine.AcceptHook(timing.NewEventLogger(b.logger))
	}

	switch {
	case b.recorder != nil:
		p.recorder = b.recorder
	case b.cfg.Trace.DB != "":
		p.recorder = datarecording.New(b.cfg.Trace.DB)
		p.ownRecorder = true
	default:
		return
	}

	tracer := trace.NewDBTracer(p.recorder)
	p.Initiator.AcceptHook(tracer)
	p.Memory.AcceptHook(tracer)
}

func (b Builder) attachMonitor(p *Platform) {
	p.Monitor = monitoring.NewMonitor().
		WithPortNumber(b.cfg.Monitor.Port).
		WithBrowser(b.cfg.Monitor.OpenBrowser)
	p.Monitor.RegisterEngine(p.Engine)

	for _, c := range p.Simulation.Components() {
		p.Monitor.RegisterComponent(c)
	}

	if b.program == nil {
		tc := b.cfg.Traffic
		total := (tc.EndAddress - tc.StartAddress + tc.Stride - 1) / tc.Stride
		p.progressBar = p.Monitor.CreateProgressBar("Traffic", total)
		p.Initiator.AcceptHook(monitoring.NewAccessCounter(p.progressBar))
	}
}

// Run starts the components and runs the engine until no event is left. It
// returns the error that stopped the engine, if any. Components still
// waiting when the engine stops are terminated.
func (p *Platform) Run() error {
	if p.Monitor != nil {
		if err := p.Monitor.StartServer(); err != nil {
			return errors.Wrap(err, "cannot start monitor")
		}
	}

	p.Memory.Start()
	p.Initiator.Start()

	err := p.Engine.Run()

	p.Initiator.Stop()
	p.Memory.Stop()

	if p.progressBar != nil {
		p.Monitor.CompleteProgressBar(p.progressBar)
	}

	if p.recorder != nil {
		p.recorder.Flush()
	}

	return err
}

// AcceptHook attaches a hook to both the initiator and the memory.
func (p *Platform) AcceptHook(h hooking.Hook) {
	p.Initiator.AcceptHook(h)
	p.Memory.AcceptHook(h)
}

// Close releases the monitor and the recorder that the platform created.
func (p *Platform) Close() error {
	var err error

	if p.Monitor != nil {
		err = p.Monitor.StopServer()
	}

	if p.ownRecorder {
		if closeErr := p.recorder.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	return err
}
