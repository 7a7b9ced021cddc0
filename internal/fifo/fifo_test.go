package fifo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteReadRoundTrip(t *testing.T) {
	f := New(8)
	n := f.Write([]byte("hello"))
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, f.Occupied())

	out := make([]byte, 5)
	n = f.Read(out)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(out))
	assert.Equal(t, 0, f.Occupied())
}

func TestWriteRefusesPastCapacity(t *testing.T) {
	f := New(4) // holds 3 usable bytes
	n := f.Write([]byte("abcdef"))
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, f.Space())
}

func TestResetEmptiesBuffer(t *testing.T) {
	f := New(4)
	f.Write([]byte("ab"))
	f.Reset()
	assert.Equal(t, 0, f.Occupied())
}
