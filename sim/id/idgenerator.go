// Package id generates identifiers for events and transaction payloads.
package id

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

var (
	generatorMutex        sync.Mutex
	generatorInstantiated bool
	generator             IDGenerator
)

// IDGenerator can generate IDs.
type IDGenerator interface {
	Generate() string
}

// UseSequentialIDGenerator makes the package generate IDs as increasing
// decimal numbers. The IDs are deterministic across runs.
func UseSequentialIDGenerator() {
	setGenerator(&sequentialIDGenerator{})
}

// UseParallelIDGenerator makes the package generate globally unique IDs that
// do not depend on generation order. IDs are no longer deterministic.
func UseParallelIDGenerator() {
	setGenerator(parallelIDGenerator{})
}

func setGenerator(g IDGenerator) {
	generatorMutex.Lock()
	defer generatorMutex.Unlock()

	if generatorInstantiated {
		log.Panic("cannot change id generator type after using it")
	}

	generator = g
	generatorInstantiated = true
}

// Generate returns a new ID from the generator selected for this run. The
// sequential generator is used if none has been selected.
func Generate() string {
	generatorMutex.Lock()
	if !generatorInstantiated {
		generator = &sequentialIDGenerator{}
		generatorInstantiated = true
	}
	g := generator
	generatorMutex.Unlock()

	return g.Generate()
}

// NewIDGenerator returns a standalone sequential generator whose first ID
// is "1".
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)

	return strconv.FormatUint(idNumber, 10)
}

type parallelIDGenerator struct{}

func (g parallelIDGenerator) Generate() string {
	return xid.New().String()
}
