// Package wire implements the on-the-wire packet format shared by the
// client and server engines: framing, big-endian integer conversion, and
// CRC-32 validation. It has no knowledge of sockets, sessions, or the
// protocol state machine built on top of it.
package wire

import (
	"errors"

	"github.com/samsamfire/filexfer/internal/crc"
)

const (
	headerByte = 0xAA

	// MinPacketSize is the size of a packet with zero bytes of payload:
	// header(1) + command(1) + dlen(2) + crc(4).
	MinPacketSize = 8

	// MaxDataLen is the largest payload dlen can address.
	MaxDataLen = 65535

	// MaxPacketSize is MinPacketSize plus the largest possible payload.
	MaxPacketSize = MinPacketSize + MaxDataLen
)

var (
	// ErrNoHeader is returned by Parse when no header byte is present.
	ErrNoHeader = errors.New("wire: no header byte found")
	// ErrShortPacket is returned by Parse when fewer than MinPacketSize
	// bytes remain counting from the header byte.
	ErrShortPacket = errors.New("wire: fewer bytes than the minimum packet size")
)

// Packet is the sole on-the-wire unit. It is a value type: callers move it
// between slots by assignment, never by shared pointer.
type Packet struct {
	Command Command
	Data    []byte
	CRC     uint32
}

// NewPacket builds a packet carrying data and computes its checksum.
func NewPacket(cmd Command, data []byte) Packet {
	p := Packet{Command: cmd, Data: data}
	p.ComputeChecksum()
	return p
}

// SetCommand stores the command byte.
func (p *Packet) SetCommand(cmd Command) {
	p.Command = cmd
}

// SetData replaces the payload with the first n bytes of data.
func (p *Packet) SetData(data []byte, n int) {
	if n > len(data) {
		n = len(data)
	}
	p.Data = append([]byte(nil), data[:n]...)
}

// SetUint64 stores v as an 8-byte big-endian payload.
func (p *Packet) SetUint64(v uint64) {
	p.Data = PutUint64BE(v)
}

// headerAndData is the byte span the CRC covers.
func (p *Packet) headerAndData() []byte {
	buf := make([]byte, 4+len(p.Data))
	buf[0] = headerByte
	buf[1] = uint8(p.Command)
	copy(buf[2:4], PutUint16BE(uint16(len(p.Data))))
	copy(buf[4:], p.Data)
	return buf
}

// ComputeChecksum computes the CRC-32 over header+data and stores it.
func (p *Packet) ComputeChecksum() {
	p.CRC = crc.Checksum(p.headerAndData())
}

// VerifyChecksum recomputes the CRC-32 and compares it against the stored
// value. It never mutates the packet.
func (p *Packet) VerifyChecksum() bool {
	return crc.Checksum(p.headerAndData()) == p.CRC
}

// Serialize emits the packet in wire form, recomputing the checksum first
// so a serialized packet is always internally consistent.
func (p *Packet) Serialize() []byte {
	p.ComputeChecksum()
	head := p.headerAndData()
	out := make([]byte, len(head)+4)
	copy(out, head)
	copy(out[len(head):], PutUint32BE(p.CRC))
	return out
}

// GetData copies up to len(buf) payload bytes into buf and returns the
// count copied.
func (p *Packet) GetData(buf []byte) int {
	n := copy(buf, p.Data)
	return n
}

// Parse scans buf for the first header byte and decodes the packet that
// follows it. A missing header, or fewer than MinPacketSize bytes counting
// from it,
// leaves the returned packet unusable (Command == CommandUnknown) and
// reports the failure; prior caller state is untouched since Parse never
// takes a receiver. A packet whose declared dlen overruns the available
// bytes is still returned (best-effort), but VerifyChecksum on it will be
// false.
func Parse(buf []byte) (Packet, error) {
	idx := -1
	for i, b := range buf {
		if b == headerByte {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Packet{Command: CommandUnknown}, ErrNoHeader
	}

	remaining := buf[idx:]
	if len(remaining) < MinPacketSize {
		return Packet{Command: CommandUnknown}, ErrShortPacket
	}

	dlen := int(Uint16BE(remaining[2:4]))
	dataEnd := 4 + dlen
	crcEnd := dataEnd + 4

	data := make([]byte, dlen)
	if dataEnd <= len(remaining) {
		copy(data, remaining[4:dataEnd])
	} else if len(remaining) > 4 {
		copy(data, remaining[4:])
	}

	var storedCRC uint32
	switch {
	case crcEnd <= len(remaining):
		storedCRC = Uint32BE(remaining[dataEnd:crcEnd])
	case dataEnd < len(remaining):
		tail := make([]byte, 4)
		copy(tail, remaining[dataEnd:])
		storedCRC = Uint32BE(tail)
	}

	return Packet{
		Command: Command(remaining[1]),
		Data:    data,
		CRC:     storedCRC,
	}, nil
}
