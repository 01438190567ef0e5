package tlm

import "github.com/sarchlab/tlm/sim/id"

// A Payload describes one transaction exchanged between an initiator and a
// target.
//
// Data belongs to the issuer for the whole call. The target reads from it
// or writes into it, but never keeps it.
type Payload struct {
	ID      string
	Command Command
	Address uint64
	Data    []byte
	Length  int

	// ByteEnable is nil when every byte is valid.
	ByteEnable []byte

	// StreamingWidth equals Length when no streaming is used.
	StreamingWidth int

	ResponseStatus ResponseStatus
	DMIAllowed     bool
}

// IsResponseOK tells if the target completed the transaction.
func (p *Payload) IsResponseOK() bool {
	return p.ResponseStatus.IsOK()
}

// IsResponseError tells if the target rejected the transaction.
func (p *Payload) IsResponseError() bool {
	return p.ResponseStatus.IsError()
}

// ResponseString returns the human-readable response status.
func (p *Payload) ResponseString() string {
	return p.ResponseStatus.String()
}

// Bytes returns the part of the data buffer covered by the transaction.
func (p *Payload) Bytes() []byte {
	return p.Data[:p.Length]
}

// PayloadBuilder can build payloads.
type PayloadBuilder struct {
	command        Command
	address        uint64
	data           []byte
	length         int
	lengthSet      bool
	byteEnable     []byte
	streamingWidth int
	widthSet       bool
}

// WithCommand sets the command of the payload to build.
func (b PayloadBuilder) WithCommand(cmd Command) PayloadBuilder {
	b.command = cmd
	return b
}

// WithAddress sets the address of the payload to build.
func (b PayloadBuilder) WithAddress(address uint64) PayloadBuilder {
	b.address = address
	return b
}

// WithData sets the data buffer of the payload to build. Unless WithLength
// is also called, the length is the length of the buffer.
func (b PayloadBuilder) WithData(data []byte) PayloadBuilder {
	b.data = data
	return b
}

// WithLength sets the number of bytes to transfer.
func (b PayloadBuilder) WithLength(length int) PayloadBuilder {
	b.length = length
	b.lengthSet = true

	return b
}

// WithByteEnable sets the byte enable mask of the payload to build.
func (b PayloadBuilder) WithByteEnable(mask []byte) PayloadBuilder {
	b.byteEnable = mask
	return b
}

// WithStreamingWidth sets the streaming width of the payload to build. It
// defaults to the length.
func (b PayloadBuilder) WithStreamingWidth(width int) PayloadBuilder {
	b.streamingWidth = width
	b.widthSet = true

	return b
}

// Build creates a payload with an incomplete response status and the DMI
// hint cleared.
func (b PayloadBuilder) Build() *Payload {
	p := &Payload{
		ID:             id.Generate(),
		Command:        b.command,
		Address:        b.address,
		Data:           b.data,
		Length:         len(b.data),
		ByteEnable:     b.byteEnable,
		ResponseStatus: IncompleteResponse,
		DMIAllowed:     false,
	}

	if b.lengthSet {
		p.Length = b.length
	}

	p.StreamingWidth = p.Length
	if b.widthSet {
		p.StreamingWidth = b.streamingWidth
	}

	return p
}
