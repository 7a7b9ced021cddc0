package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/samsamfire/filexfer/pkg/wire"
)

// localPort reads back the ephemeral port the kernel assigned to a socket
// bound with port 0.
func localPort(s *Socket) (int, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return 0, err
	}
	return sa.(*unix.SockaddrInet4).Port, nil
}

func listenAndDial(t *testing.T) (*Socket, *Socket) {
	t.Helper()
	ln, err := Listen(0, 1)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	port, err := localPort(ln)
	require.NoError(t, err)

	accepted := make(chan *Socket, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		accepted <- c
	}()

	client, err := Dial([4]byte{127, 0, 0, 1}, port)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server := <-accepted
	t.Cleanup(func() { server.Close() })
	return client, server
}

func TestListenOnEphemeralPortThenDialAndAccept(t *testing.T) {
	client, server := listenAndDial(t)
	assert.NotEqual(t, 0, client.Fd())
	assert.NotEqual(t, 0, server.Fd())
}

func TestWriteThenRead(t *testing.T) {
	client, server := listenAndDial(t)

	n, err := client.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestWritePacketRoundTrip(t *testing.T) {
	client, server := listenAndDial(t)

	pkt := wire.NewPacket(wire.CommandDataPackage, []byte("payload"))
	n, err := client.WritePacket(&pkt)
	require.NoError(t, err)
	assert.True(t, n > 0)

	buf := make([]byte, wire.MaxPacketSize)
	n, err = server.Read(buf)
	require.NoError(t, err)

	got, err := wire.Parse(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, pkt.Command, got.Command)
	assert.Equal(t, pkt.Data, got.Data)
	assert.True(t, got.VerifyChecksum())
}

func TestReadOnNonBlockingSocketWithNoDataReturnsErrWouldBlock(t *testing.T) {
	_, server := listenAndDial(t)
	require.NoError(t, server.SetNonBlocking(true))

	buf := make([]byte, 16)
	_, err := server.Read(buf)
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestAcceptOnNonBlockingListenerWithNoPendingReturnsErrWouldBlock(t *testing.T) {
	ln, err := Listen(0, 1)
	require.NoError(t, err)
	defer ln.Close()
	require.NoError(t, ln.SetNonBlocking(true))

	_, err = ln.Accept()
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestCloseIsIdempotent(t *testing.T) {
	ln, err := Listen(0, 1)
	require.NoError(t, err)

	assert.NoError(t, ln.Close())
	assert.NoError(t, ln.Close())
}

func TestReadReturnsZeroOnOrderlyPeerClose(t *testing.T) {
	client, server := listenAndDial(t)
	require.NoError(t, client.Close())

	buf := make([]byte, 16)
	n, err := server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
