package wire

import "encoding/binary"

// Big-endian fixed-width integer <-> byte conversions. The wire format is
// independent of host endianness; every multi-byte field uses these.

// PutUint64BE returns v encoded as 8 big-endian bytes.
func PutUint64BE(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// Uint64BE decodes the first 8 bytes of buf as a big-endian uint64.
func Uint64BE(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

// PutUint16BE returns v encoded as 2 big-endian bytes.
func PutUint16BE(v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

// Uint16BE decodes the first 2 bytes of buf as a big-endian uint16.
func Uint16BE(buf []byte) uint16 {
	return binary.BigEndian.Uint16(buf)
}

// PutUint32BE returns v encoded as 4 big-endian bytes.
func PutUint32BE(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

// Uint32BE decodes the first 4 bytes of buf as a big-endian uint32.
func Uint32BE(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf)
}
