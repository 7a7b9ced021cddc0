// Package reactor wraps epoll(7) for a single watched file descriptor. It
// generalizes the teacher's "CAN id -> listeners" dispatch table
// (bus_manager.go's subscriber/Handle idiom) from frame IDs to readiness
// event kinds.
package reactor

import (
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// EventKind is a readiness event bit, aliased from the epoll constants so
// callers never need to import golang.org/x/sys/unix themselves.
type EventKind uint32

const (
	EventIn    EventKind = unix.EPOLLIN
	EventOut   EventKind = unix.EPOLLOUT
	EventPri   EventKind = unix.EPOLLPRI
	EventHUp   EventKind = unix.EPOLLHUP
	EventRdHUp EventKind = unix.EPOLLRDHUP
	EventErr   EventKind = unix.EPOLLERR

	errorMask = EventErr | EventHUp
)

// Verdict is returned by a Handler to tell the loop whether to keep going.
type Verdict int

const (
	// Continue tells the loop to keep waiting for further events.
	Continue Verdict = iota
	// Exit tells the loop to return from Start.
	Exit
)

// Handler reacts to one fired event kind.
type Handler func() Verdict

const (
	waitTimeout   = 5 * time.Second
	maxEventBatch = 10
)

// Reactor pins one file descriptor and a mask of event kinds it cares
// about, and dispatches fired events to registered handlers. It makes no
// threading promises beyond "handlers run on the goroutine that called
// Start".
type Reactor struct {
	epollFd  int
	watched  int
	mask     EventKind
	handlers map[EventKind]Handler
	breaking atomic.Bool
	logger   *log.Entry
}

// New pins (fd, mask). Call Init before Start.
func New(fd int, mask EventKind) *Reactor {
	return &Reactor{
		epollFd:  -1,
		watched:  fd,
		mask:     mask,
		handlers: make(map[EventKind]Handler),
		logger:   log.WithField("component", "reactor"),
	}
}

// Init creates the epoll instance and registers the watched fd.
func (r *Reactor) Init() error {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return err
	}
	event := unix.EpollEvent{Events: uint32(r.mask), Fd: int32(r.watched)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, r.watched, &event); err != nil {
		unix.Close(epfd)
		return err
	}
	r.epollFd = epfd
	return nil
}

// BindSlot associates a handler with one event kind.
func (r *Reactor) BindSlot(kind EventKind, handler Handler) {
	r.handlers[kind] = handler
}

// RebindSlot replaces an existing handler for kind.
func (r *Reactor) RebindSlot(kind EventKind, handler Handler) {
	r.handlers[kind] = handler
}

// BreakLoop requests the loop exit at the top of its next iteration. Safe
// to call from another goroutine (e.g. a signal handler).
func (r *Reactor) BreakLoop() {
	r.breaking.Store(true)
}

// Close releases the epoll instance. The watched fd is owned by the
// caller and is not closed here.
func (r *Reactor) Close() error {
	if r.epollFd < 0 {
		return nil
	}
	err := unix.Close(r.epollFd)
	r.epollFd = -1
	return err
}

// Start runs the readiness loop until a handler returns Exit, an error bit
// fires on the watched fd, BreakLoop is called, or the wait is interrupted
// by a signal.
func (r *Reactor) Start() error {
	events := make([]unix.EpollEvent, maxEventBatch)

	for {
		if r.breaking.Load() {
			return nil
		}

		n, err := unix.EpollWait(r.epollFd, events, int(waitTimeout/time.Millisecond))
		if err != nil {
			if err == unix.EINTR {
				return nil
			}
			return err
		}

		if n == 0 {
			continue
		}

		for i := 0; i < n; i++ {
			fired := EventKind(events[i].Events)
			if fired&errorMask != 0 {
				return nil
			}

			for kind, handler := range r.handlers {
				if fired&kind == 0 {
					continue
				}
				if handler == nil {
					continue
				}
				if verdict := handler(); verdict == Exit {
					return nil
				}
			}
		}
	}
}
