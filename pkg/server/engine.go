// Package server implements the listening side of the protocol: a
// listening socket plus a root reactor that accepts connections and hands
// each one to a worker-pool goroutine running its own sub-reactor and
// session state machine. Grounded on the teacher's pkg/sdo/server.go
// Process loop, generalized from "one SDOServer per CAN node" to "one
// session per accepted TCP connection".
package server

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/filexfer/pkg/config"
	"github.com/samsamfire/filexfer/pkg/reactor"
	"github.com/samsamfire/filexfer/pkg/socket"
	"github.com/samsamfire/filexfer/pkg/workerpool"
)

// Engine owns the listening socket and the root reactor that accepts new
// connections and dispatches each to the worker pool.
type Engine struct {
	cfg      *config.Config
	listener *socket.Socket
	root     *reactor.Reactor
	pool     *workerpool.Pool
	shutdown atomic.Bool
	logger   *log.Entry
}

// New builds an Engine from cfg. poolSize selects the worker pool size
// (the spec calls for hardware parallelism; callers pass runtime.GOMAXPROCS(0)).
func New(cfg *config.Config, poolSize int) *Engine {
	return &Engine{
		cfg:    cfg,
		pool:   workerpool.New(poolSize),
		logger: log.WithField("component", "server"),
	}
}

// Listen opens the listening socket, arms the root reactor, and binds its
// IN handler. Call Serve afterwards to actually run the accept loop.
func (e *Engine) Listen() error {
	l, err := socket.Listen(e.cfg.Port, e.cfg.Backlog)
	if err != nil {
		return err
	}
	if err := l.SetNonBlocking(true); err != nil {
		l.Close()
		return err
	}
	e.listener = l

	e.root = reactor.New(l.Fd(), reactor.EventIn|reactor.EventPri|reactor.EventHUp|reactor.EventErr)
	e.root.BindSlot(reactor.EventIn, e.acceptOneAndDispatch)
	exitHandler := func() reactor.Verdict { return reactor.Exit }
	e.root.BindSlot(reactor.EventHUp, exitHandler)
	e.root.BindSlot(reactor.EventErr, exitHandler)

	if err := e.root.Init(); err != nil {
		l.Close()
		return err
	}
	return nil
}

// Serve runs the root reactor loop until a shutdown is requested or a
// fatal error hits the listening socket. It returns when the loop exits.
func (e *Engine) Serve() error {
	e.logger.WithField("port", e.cfg.Port).Info("listening for connections")
	return e.root.Start()
}

// Shutdown requests a graceful stop: the root reactor observes the flag at
// its next iteration and returns, existing per-connection workers drain
// normally, and the worker pool is joined.
func (e *Engine) Shutdown() {
	if !e.shutdown.CompareAndSwap(false, true) {
		return
	}
	e.root.BreakLoop()
	if e.listener != nil {
		e.listener.Close()
	}
	e.pool.Stop()
}

// acceptOneAndDispatch accepts one pending connection and enqueues its
// session loop onto the worker pool. A would-block or failed accept keeps
// the root reactor running; once the shutdown flag is set it returns Exit,
// which ends the loop without an error.
func (e *Engine) acceptOneAndDispatch() reactor.Verdict {
	if e.shutdown.Load() {
		return reactor.Exit
	}

	conn, err := e.listener.Accept()
	if err != nil {
		if err == socket.ErrWouldBlock {
			return reactor.Continue
		}
		e.logger.WithError(err).Warn("accept failed")
		return reactor.Continue
	}

	cfg := e.cfg
	logger := e.logger
	if enqErr := e.pool.Enqueue(func() {
		handleConnection(conn, cfg, logger)
	}); enqErr != nil {
		logger.WithError(enqErr).Warn("could not enqueue accepted connection, dropping it")
		conn.Close()
	}
	return reactor.Continue
}
