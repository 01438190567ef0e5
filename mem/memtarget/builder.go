package memtarget

import (
	"math/rand"

	"github.com/sarchlab/tlm/mem/storage"
	"github.com/sarchlab/tlm/mem/tlm"
	"github.com/sarchlab/tlm/sim/modeling"
	"github.com/sarchlab/tlm/sim/timing"
)

// InitPatternBase is OR-ed with a random byte to form the initial value of
// each word.
const InitPatternBase = 0xAA000000

// Builder can build memory targets.
type Builder struct {
	engine               timing.EventScheduler
	freq                 timing.Freq
	latency              int
	numWords             uint64
	wordSize             uint64
	storage              *storage.Storage
	seed                 int64
	initPattern          bool
	dmiEnabled           bool
	invalidationCount    int
	invalidationInterval int
}

// MakeBuilder returns a new Builder.
func MakeBuilder() Builder {
	return Builder{
		freq:                 1 * timing.GHz,
		latency:              10,
		numWords:             256,
		wordSize:             tlm.WordSize,
		initPattern:          true,
		dmiEnabled:           true,
		invalidationCount:    4,
		invalidationInterval: 8,
	}
}

// WithEngine sets the engine that the target uses.
func (b Builder) WithEngine(engine timing.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency that latencies are counted in.
func (b Builder) WithFreq(freq timing.Freq) Builder {
	b.freq = freq
	return b
}

// WithLatency sets the number of cycles that each access takes.
func (b Builder) WithLatency(cycles int) Builder {
	b.latency = cycles
	return b
}

// WithNumWords sets the number of words in a new storage.
func (b Builder) WithNumWords(n uint64) Builder {
	b.numWords = n
	return b
}

// WithWordSize sets the number of bytes in a word of a new storage.
func (b Builder) WithWordSize(n uint64) Builder {
	b.wordSize = n
	return b
}

// WithStorage sets an existing storage to serve from.
func (b Builder) WithStorage(s *storage.Storage) Builder {
	b.storage = s
	return b
}

// WithSeed sets the seed of the initial memory content.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithoutInitPattern leaves a new storage zero-filled.
func (b Builder) WithoutInitPattern() Builder {
	b.initPattern = false
	return b
}

// WithDMI sets whether the target grants direct memory access.
func (b Builder) WithDMI(enabled bool) Builder {
	b.dmiEnabled = enabled
	return b
}

// WithInvalidation sets how many times the target revokes its grants and the
// interval between two revocations, as a multiple of the latency.
func (b Builder) WithInvalidation(count, latencyMultiple int) Builder {
	b.invalidationCount = count
	b.invalidationInterval = latencyMultiple
	return b
}

// Build creates a memory target.
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		panic("memory target requires an engine")
	}

	c := &Comp{
		ComponentBase:     modeling.NewComponentBase(name),
		Latency:           b.freq.NCycles(b.latency),
		engine:            b.engine,
		dmiEnabled:        b.dmiEnabled,
		invalidationCount: b.invalidationCount,
	}

	c.invalidationInterval = c.Latency *
		timing.VTimeInSec(b.invalidationInterval)

	c.Storage = b.storage
	if c.Storage == nil {
		c.Storage = storage.New(b.numWords, b.wordSize)
		if b.initPattern {
			fillInitPattern(c.Storage, b.seed)
		}
	}

	c.Socket = tlm.NewTargetSocket(modeling.BuildName(name, "Socket"), c)
	c.invalidator = timing.NewProcess(
		modeling.BuildName(name, "Invalidator"), b.engine, c.invalidate)

	return c
}

func fillInitPattern(s *storage.Storage, seed int64) {
	r := rand.New(rand.NewSource(seed))

	s.Fill(func(uint64) uint64 {
		return InitPatternBase | uint64(r.Intn(256))
	})
}
