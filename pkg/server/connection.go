package server

import (
	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/filexfer/pkg/config"
	"github.com/samsamfire/filexfer/pkg/reactor"
	"github.com/samsamfire/filexfer/pkg/session"
	"github.com/samsamfire/filexfer/pkg/socket"
	"github.com/samsamfire/filexfer/pkg/wire"
)

// conn bundles the per-connection socket, session, and sub-reactor. It is
// created fresh for every accepted connection and owned exclusively by the
// worker goroutine running it, per the spec's single-owner discipline.
type conn struct {
	sock    *socket.Socket
	sess    *session.Session
	cfg     *config.Config
	logger  *log.Entry
	readBuf []byte
}

// handleConnection runs one connection's full lifetime: non-blocking mode,
// a fresh session, a sub-reactor armed on IN|OUT|HUP|ERR, and the reactor
// loop. It always leaves the session and socket cleaned up on return.
func handleConnection(sock *socket.Socket, cfg *config.Config, logger *log.Entry) {
	defer sock.Close()

	if err := sock.SetNonBlocking(true); err != nil {
		logger.WithError(err).Warn("failed to set accepted socket non-blocking")
		return
	}

	c := &conn{
		sock:    sock,
		sess:    session.New(cfg.RootDir),
		cfg:     cfg,
		logger:  logger.WithField("component", "session"),
		readBuf: make([]byte, wire.MaxPacketSize),
	}
	defer c.sess.Close()

	sub := reactor.New(sock.Fd(), reactor.EventIn|reactor.EventOut|reactor.EventRdHUp|reactor.EventHUp|reactor.EventErr)
	sub.BindSlot(reactor.EventIn, c.onReadable)
	sub.BindSlot(reactor.EventOut, c.onWritable)
	exitHandler := func() reactor.Verdict { return reactor.Exit }
	sub.BindSlot(reactor.EventRdHUp, exitHandler)
	sub.BindSlot(reactor.EventHUp, exitHandler)
	sub.BindSlot(reactor.EventErr, exitHandler)

	if err := sub.Init(); err != nil {
		c.logger.WithError(err).Warn("failed to initialize connection reactor")
		return
	}
	defer sub.Close()

	if err := sub.Start(); err != nil {
		c.logger.WithError(err).Warn("connection reactor exited with error")
	}
}

// setPendingSend stages a response packet; on_writable flushes it and
// clears the slot on success. Every response normalizes through this one
// slot, per the spec's note that the source sometimes bypassed it.
func (c *conn) setPendingSend(cmd wire.Command, data []byte) {
	c.sess.PendingSend = wire.NewPacket(cmd, data)
}

// onReadable implements the cross-cutting read rules plus per-phase
// dispatch described in the state machine.
func (c *conn) onReadable() reactor.Verdict {
	n, err := c.sock.Read(c.readBuf)
	if err == socket.ErrWouldBlock {
		return reactor.Continue
	}
	if err != nil || n == 0 {
		c.sess.Reset()
		return reactor.Exit
	}

	if n < wire.MinPacketSize {
		c.setPendingSend(wire.CommandChecksumError, nil)
		return reactor.Continue
	}

	pkt, perr := wire.Parse(c.readBuf[:n])
	if perr != nil || !pkt.VerifyChecksum() {
		c.setPendingSend(wire.CommandChecksumError, nil)
		return reactor.Continue
	}

	if pkt.Command == wire.CommandChecksumError {
		// State unchanged; re-stage last_sent so on_writable resends it.
		c.sess.PendingSend = c.sess.LastSent
		return reactor.Continue
	}

	c.sess.LastReceived = pkt

	switch c.sess.Phase {
	case session.PhaseAwaitFileSize:
		c.handleRequestToSend(pkt)
		return reactor.Continue
	case session.PhaseReceiveFile:
		c.handleDataPackage(pkt)
		return reactor.Continue
	case session.PhaseAwaitFinalMessage:
		// ALL_DATA_SENT or anything else: exit either way. The completed
		// file is preserved because session.Close only deletes a partial
		// artifact (ReceivedPackets < ExpectedPackets).
		return reactor.Exit
	default: // session.PhaseAbort
		return reactor.Continue
	}
}

// handleRequestToSend implements the AWAIT_FILE_SIZE transitions.
func (c *conn) handleRequestToSend(pkt wire.Packet) {
	if pkt.Command != wire.CommandRequestToSend || len(pkt.Data) < 8 {
		c.setPendingSend(wire.CommandAbort, nil)
		c.sess.Phase = session.PhaseAbort
		return
	}

	fileSize := wire.Uint64BE(pkt.Data[:8])
	if err := c.sess.CanSave(fileSize); err != nil {
		c.logger.WithError(err).Warn("rejecting request to send")
		c.setPendingSend(wire.CommandRequestRejected, nil)
		c.sess.Phase = session.PhaseAbort
		return
	}

	chunkSize, totalPackets := session.ChunkPlan(fileSize)
	c.sess.ExpectedBytes = fileSize
	c.sess.ChunkSize = chunkSize
	c.sess.ExpectedPackets = totalPackets

	payload := make([]byte, 0, 16)
	payload = append(payload, wire.PutUint64BE(totalPackets)...)
	payload = append(payload, wire.PutUint64BE(chunkSize)...)
	c.setPendingSend(wire.CommandRequestApproved, payload)
}

// handleDataPackage implements the RECEIVE_FILE transitions.
func (c *conn) handleDataPackage(pkt wire.Packet) {
	if pkt.Command != wire.CommandDataPackage {
		c.setPendingSend(wire.CommandAbort, nil)
		c.sess.Phase = session.PhaseAbort
		return
	}

	if err := c.sess.OpenFile(); err != nil {
		c.logger.WithError(err).Warn("failed to open output file")
		c.setPendingSend(wire.CommandAbort, nil)
		c.sess.Phase = session.PhaseAbort
		return
	}

	if err := c.sess.WriteToFile(pkt.Data, len(pkt.Data)); err != nil {
		c.logger.WithError(err).Warn("failed to write chunk to output file")
		c.setPendingSend(wire.CommandAbort, nil)
		c.sess.Phase = session.PhaseAbort
		return
	}

	c.setPendingSend(wire.CommandPackageAccepted, wire.PutUint64BE(c.sess.ReceivedPackets))
}

// onWritable flushes pending_send, if any, and advances the phase on a
// successful write.
func (c *conn) onWritable() reactor.Verdict {
	if c.sess.PendingSend.Command == wire.CommandEmpty {
		return reactor.Continue
	}

	n, err := c.sock.WritePacket(&c.sess.PendingSend)
	if err == socket.ErrWouldBlock {
		return reactor.Continue
	}
	if err != nil || n <= 0 {
		c.sess.Reset()
		return reactor.Exit
	}

	sent := c.sess.PendingSend
	c.sess.LastSent = sent
	c.sess.PendingSend = wire.Packet{}

	switch c.sess.Phase {
	case session.PhaseAwaitFileSize:
		if sent.Command == wire.CommandRequestApproved {
			c.sess.Phase = session.PhaseReceiveFile
		}
	case session.PhaseReceiveFile:
		if sent.Command == wire.CommandPackageAccepted && c.sess.Complete() {
			c.sess.Phase = session.PhaseAwaitFinalMessage
		}
	case session.PhaseAbort:
		return reactor.Exit
	}
	return reactor.Continue
}
