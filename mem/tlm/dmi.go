package tlm

import (
	"github.com/sarchlab/tlm/mem/storage"
	"github.com/sarchlab/tlm/sim/timing"
)

// DMI describes a direct memory interface grant: a window into the target's
// storage that an initiator can access without going through the transport
// call.
type DMI struct {
	// Handle is shared with the target and stays usable only until the
	// target revokes it.
	Handle *storage.Handle

	// StartAddress and EndAddress are inclusive bounds in the address space.
	StartAddress uint64
	EndAddress   uint64

	ReadAllowed  bool
	WriteAllowed bool

	ReadLatency  timing.VTimeInSec
	WriteLatency timing.VTimeInSec

	// WordSize is the access granularity of the target. Accesses go to the
	// word that holds the address, as they do through the transport call.
	// Zero means byte granularity.
	WordSize uint64
}

// Init resets the grant to an empty, unusable state.
func (d *DMI) Init() {
	*d = DMI{}
}

// AllowReadWrite grants both read and write permission.
func (d *DMI) AllowReadWrite() {
	d.ReadAllowed = true
	d.WriteAllowed = true
}

// IsValid tells if the grant's handle has not been revoked.
func (d *DMI) IsValid() bool {
	return d.Handle.Valid()
}

// Permits tells if the grant allows the command.
func (d *DMI) Permits(cmd Command) bool {
	switch cmd {
	case ReadCommand:
		return d.ReadAllowed
	case WriteCommand:
		return d.WriteAllowed
	default:
		return false
	}
}

// AlignDown returns the address of the first byte of the word holding
// address.
func (d *DMI) AlignDown(address uint64) uint64 {
	if d.WordSize == 0 {
		return address
	}

	return address / d.WordSize * d.WordSize
}

// Covers tells if the access of length bytes at the word holding address
// lies within the grant.
func (d *DMI) Covers(address uint64, length int) bool {
	address = d.AlignDown(address)

	if address < d.StartAddress || address > d.EndAddress {
		return false
	}

	if length <= 0 {
		return true
	}

	return uint64(length)-1 <= d.EndAddress-address
}

// Latency returns the latency that an access with the command must honor.
func (d *DMI) Latency(cmd Command) timing.VTimeInSec {
	if cmd == WriteCommand {
		return d.WriteLatency
	}

	return d.ReadLatency
}

// Window returns the bytes that an access at address of length bytes goes
// through, starting at the word that holds address. It returns nil if the
// grant has been revoked.
func (d *DMI) Window(address uint64, length int) []byte {
	data := d.Handle.Bytes()
	if data == nil {
		return nil
	}

	offset := d.AlignDown(address) - d.StartAddress

	return data[offset : offset+uint64(length)]
}
