// Package socket wraps a raw TCP file descriptor. It exists because the
// reactor needs naked fds to register with epoll; the standard library's
// net package hides that behind its own runtime poller. Two roles are
// distinguished at construction: a listening socket (bind/listen/accept)
// and a connected socket (read/write), mirroring the teacher's split
// between a listening Bus and the per-connection handler it hands frames to.
package socket

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/samsamfire/filexfer/pkg/wire"
)

// ErrWouldBlock is returned by Accept/Read/Write on a non-blocking socket
// when the operation cannot complete immediately.
var ErrWouldBlock = errors.New("socket: operation would block")

// Socket owns exactly one file descriptor.
type Socket struct {
	fd     int
	closed bool
}

// Listen binds to INADDR_ANY:port with address reuse and starts listening
// with the given backlog.
func Listen(port int, backlog int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Socket{fd: fd}, nil
}

// Dial blocks until a TCP connection to addr:port completes or fails.
func Dial(addr [4]byte, port int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: addr}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Socket{fd: fd}, nil
}

// Accept yields a new connected Socket for a pending connection, or
// ErrWouldBlock on a non-blocking listening socket with nothing pending.
func (s *Socket) Accept() (*Socket, error) {
	fd, _, err := unix.Accept4(s.fd, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, ErrWouldBlock
		}
		return nil, err
	}
	return &Socket{fd: fd}, nil
}

// SetNonBlocking toggles blocking mode for subsequent reads/writes/accepts.
func (s *Socket) SetNonBlocking(nonBlocking bool) error {
	return unix.SetNonblock(s.fd, nonBlocking)
}

// Fd returns the raw file descriptor, for reactor registration only.
func (s *Socket) Fd() int {
	return s.fd
}

// Read reads up to len(buf) bytes. It returns (n, nil) for n > 0, (0, nil)
// on an orderly peer close, and (negative-equivalent via err) on error;
// ErrWouldBlock signals a transient non-blocking miss.
func (s *Socket) Read(buf []byte) (int, error) {
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

// Write writes buf, possibly partially; the caller sees the actual count.
func (s *Socket) Write(buf []byte) (int, error) {
	n, err := unix.Write(s.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

// WritePacket serializes p and writes it in one call.
func (s *Socket) WritePacket(p *wire.Packet) (int, error) {
	return s.Write(p.Serialize())
}

// Close shuts the socket down full-duplex. It is idempotent.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := unix.Close(s.fd)
	if err != nil {
		log.WithError(err).Debug("socket: close failed")
	}
	return err
}
