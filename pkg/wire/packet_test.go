package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	p := NewPacket(CommandDataPackage, []byte("hello world"))
	raw := p.Serialize()

	parsed, err := Parse(raw)
	assert.NoError(t, err)
	assert.Equal(t, p.Command, parsed.Command)
	assert.Equal(t, p.Data, parsed.Data)
	assert.True(t, parsed.VerifyChecksum())
}

func TestEmptyPayloadRoundTrip(t *testing.T) {
	p := NewPacket(CommandAllDataSent, nil)
	raw := p.Serialize()
	assert.Len(t, raw, MinPacketSize)

	parsed, err := Parse(raw)
	assert.NoError(t, err)
	assert.Equal(t, CommandAllDataSent, parsed.Command)
	assert.Empty(t, parsed.Data)
	assert.True(t, parsed.VerifyChecksum())
}

func TestBitFlipBreaksChecksum(t *testing.T) {
	p := NewPacket(CommandRequestToSend, PutUint64BE(3000))
	raw := p.Serialize()

	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), raw...)
			flipped[i] ^= 1 << bit
			parsed, err := Parse(flipped)
			if i == 0 {
				// A flipped header byte leaves no 0xAA in the frame.
				assert.ErrorIs(t, err, ErrNoHeader, "byte %d bit %d", i, bit)
			} else {
				assert.NoError(t, err)
			}
			assert.False(t, parsed.VerifyChecksum(), "byte %d bit %d should invalidate checksum", i, bit)
		}
	}
}

func TestParseIgnoresBytesBeforeHeader(t *testing.T) {
	p := NewPacket(CommandPackageAccepted, PutUint64BE(1))
	raw := append([]byte{0x00, 0x01, 0x02}, p.Serialize()...)

	parsed, err := Parse(raw)
	assert.NoError(t, err)
	assert.Equal(t, CommandPackageAccepted, parsed.Command)
	assert.True(t, parsed.VerifyChecksum())
}

func TestParseNoHeaderByte(t *testing.T) {
	_, err := Parse([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestParseShortPacket(t *testing.T) {
	_, err := Parse([]byte{0xAA, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestParseTruncatedDataIsCorrupt(t *testing.T) {
	p := NewPacket(CommandDataPackage, []byte("0123456789"))
	raw := p.Serialize()
	truncated := raw[:len(raw)-5]

	parsed, err := Parse(truncated)
	assert.NoError(t, err)
	assert.False(t, parsed.VerifyChecksum())
}

func TestGetDataCopiesPayload(t *testing.T) {
	p := NewPacket(CommandDataPackage, []byte("abc"))
	buf := make([]byte, 3)
	n := p.GetData(buf)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(buf))
}
