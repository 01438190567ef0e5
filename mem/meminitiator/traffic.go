package meminitiator

import (
	"encoding/binary"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/sarchlab/tlm/mem/tlm"
)

// WriteDataBase is OR-ed with the address to form the data that the traffic
// program writes.
const WriteDataBase = 0xFF000000

// Traffic describes the accesses that the default program issues.
type Traffic struct {
	// StartAddress and EndAddress bound the accessed range, [start, end).
	StartAddress uint64
	EndAddress   uint64
	Stride       uint64
	AccessSize   int
	Seed         int64

	// DumpLength is the number of bytes read by the debug access after the
	// last access. Zero skips the dump.
	DumpLength int
}

// DefaultTraffic walks the first 128 bytes word by word and dumps them
// afterwards.
func DefaultTraffic() Traffic {
	return Traffic{
		StartAddress: 0,
		EndAddress:   128,
		Stride:       tlm.WordSize,
		AccessSize:   tlm.WordSize,
		Seed:         0,
		DumpLength:   128,
	}
}

// Program returns a program that issues a random read or write at every
// stride of the range and finally dumps memory with a debug read.
func (t Traffic) Program() Program {
	return func(c *Comp) error {
		r := rand.New(rand.NewSource(t.Seed))
		buf := make([]byte, t.AccessSize)

		for i, addr := 0, t.StartAddress; addr < t.EndAddress; i, addr = i+1, addr+t.Stride {
			cmd := tlm.ReadCommand
			if r.Intn(2) == 1 {
				cmd = tlm.WriteCommand
				encodeData(buf, WriteDataBase|addr)
			}

			if err := c.Issue(cmd, addr, buf, t.AccessSize); err != nil {
				return errors.Wrapf(err, "access %d", i)
			}
		}

		if t.DumpLength > 0 {
			c.Debug(tlm.ReadCommand, 0, make([]byte, t.DumpLength))
		}

		return nil
	}
}

func encodeData(buf []byte, value uint64) {
	var full [8]byte
	binary.LittleEndian.PutUint64(full[:], value)
	copy(buf, full[:])
}
