// Package tlm defines the transaction-level protocol spoken between an
// initiator and a target: the transaction payload, its response status, the
// direct memory interface grant, and the sockets that bind the two sides.
package tlm

import "fmt"

// WordSize is the number of bytes that one transaction can carry.
const WordSize = 4

// Command is the operation a payload asks for.
type Command int

// The supported commands.
const (
	ReadCommand Command = iota
	WriteCommand
)

// String returns the one-letter form used in traces.
func (c Command) String() string {
	switch c {
	case ReadCommand:
		return "R"
	case WriteCommand:
		return "W"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// ResponseStatus is the outcome of a transport call.
type ResponseStatus int

// Response statuses. IncompleteResponse is the value every payload starts
// with, and a target must replace it before returning.
const (
	IncompleteResponse ResponseStatus = iota
	OKResponse
	AddressErrorResponse
	ByteEnableErrorResponse
	BurstErrorResponse
)

// String returns the human-readable status.
func (s ResponseStatus) String() string {
	switch s {
	case IncompleteResponse:
		return "INCOMPLETE_RESPONSE"
	case OKResponse:
		return "OK_RESPONSE"
	case AddressErrorResponse:
		return "ADDRESS_ERROR_RESPONSE"
	case ByteEnableErrorResponse:
		return "BYTE_ENABLE_ERROR_RESPONSE"
	case BurstErrorResponse:
		return "BURST_ERROR_RESPONSE"
	default:
		return fmt.Sprintf("ResponseStatus(%d)", int(s))
	}
}

// IsOK tells if the transaction succeeded.
func (s ResponseStatus) IsOK() bool {
	return s == OKResponse
}

// IsError tells if the target rejected the transaction. An incomplete status
// is not an error; it means the target never answered.
func (s ResponseStatus) IsError() bool {
	return s != OKResponse && s != IncompleteResponse
}
