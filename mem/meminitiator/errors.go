package meminitiator

import (
	"fmt"

	"github.com/sarchlab/tlm/mem/tlm"
)

// A ProtocolError reports a transaction that the target rejected.
type ProtocolError struct {
	Status         tlm.ResponseStatus
	Command        tlm.Command
	Address        uint64
	Length         int
	StreamingWidth int
}

func newProtocolError(p *tlm.Payload) *ProtocolError {
	return &ProtocolError{
		Status:         p.ResponseStatus,
		Command:        p.Command,
		Address:        p.Address,
		Length:         p.Length,
		StreamingWidth: p.StreamingWidth,
	}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("transaction returned with error, response status = %s",
		e.Status)
}
