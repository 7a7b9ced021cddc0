// Package client implements the synchronous, single-threaded client side
// of the transfer protocol. It is grounded on the teacher's
// pkg/sdo/client.go downloadMain retry/timeout loop, adapted from CAN
// frame polling to blocking TCP reads.
package client

import (
	"errors"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/filexfer/internal/fifo"
	"github.com/samsamfire/filexfer/pkg/socket"
	"github.com/samsamfire/filexfer/pkg/wire"
)

// DefaultRetryBudget is the maximum number of consecutive protocol-level
// retries before a local abort, per the design's retry budget constant.
const DefaultRetryBudget = 10

var (
	// ErrConnect wraps socket connect failures.
	ErrConnect = errors.New("client: could not connect to server")
	// ErrRequestRejected is returned when the server declines the transfer.
	ErrRequestRejected = errors.New("client: server rejected the request")
	// ErrMalformedApproval is returned when REQUEST_APPROVED's payload
	// cannot be split into the two 8-byte big-endian fields it must carry.
	ErrMalformedApproval = errors.New("client: malformed REQUEST_APPROVED payload")
	// ErrRetryBudgetExhausted is returned when 10 consecutive retries fail
	// to produce a valid reply.
	ErrRetryBudgetExhausted = errors.New("client: retry budget exhausted")
	// ErrServerAbort is returned when the server sends ABORT.
	ErrServerAbort = errors.New("client: server sent ABORT")
	// ErrShortReply is returned when a reply during the data phase is
	// below the minimum packet size; the data phase aborts immediately
	// rather than retrying (unlike the handshake phase).
	ErrShortReply = errors.New("client: reply below minimum packet size")
	// ErrChunkOverflow is returned if a read chunk cannot fit in the
	// scratch buffer sized for it; this should never happen in practice.
	ErrChunkOverflow = errors.New("client: read chunk exceeds scratch buffer capacity")
)

// Client drives one file transfer over one TCP connection. It is not
// reusable across transfers and carries no state between calls to Send.
type Client struct {
	retryBudget int
	logger      *log.Entry
}

// New returns a client engine with the given retry budget (0 selects the
// design default of 10).
func New(retryBudget int) *Client {
	if retryBudget <= 0 {
		retryBudget = DefaultRetryBudget
	}
	return &Client{retryBudget: retryBudget, logger: log.WithField("component", "client")}
}

// Send opens filePath, connects to addr:port, and drives the full upload
// protocol. It returns a non-nil error on any failure; the caller maps
// that to a non-zero process exit code.
func (c *Client) Send(addr [4]byte, port int, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	fileSize := uint64(info.Size())

	sock, err := socket.Dial(addr, port)
	if err != nil {
		return errors.Join(ErrConnect, err)
	}
	defer sock.Close()

	request := wire.NewPacket(wire.CommandRequestToSend, wire.PutUint64BE(fileSize))
	if _, err := sock.WritePacket(&request); err != nil {
		return err
	}

	reply, err := c.readHandshakeReply(sock)
	if err != nil {
		return err
	}
	if reply.Command == wire.CommandRequestRejected {
		return ErrRequestRejected
	}
	if reply.Command != wire.CommandRequestApproved {
		c.logger.WithField("command", reply.Command).Warn("unexpected reply to REQUEST_TO_SEND, attempting to parse anyway")
	}
	totalPackets, chunkSize, err := splitApproval(reply.Data)
	if err != nil {
		return err
	}
	if totalPackets == 0 || (chunkSize == 0 && totalPackets > 1) {
		return ErrMalformedApproval
	}

	readBuf := make([]byte, chunkSize)
	// scratch decouples the file.ReadAt buffer from the outgoing packet's
	// payload slice, the way the teacher's block-transfer fifo sat between
	// the OD streamer and the CAN frame it filled.
	scratch := fifo.New(int(chunkSize) + 1)
	var uploaded uint64
	var packetsSent uint64
	retry := 0

	for packetsSent < totalPackets && retry < c.retryBudget {
		readLen := chunkSize
		if remaining := fileSize - uploaded; remaining < readLen {
			readLen = remaining
		}

		n, err := file.ReadAt(readBuf[:readLen], int64(uploaded))
		if err != nil && err != io.EOF {
			return err
		}

		scratch.Reset()
		if written := scratch.Write(readBuf[:n]); written != n {
			return ErrChunkOverflow
		}
		payload := make([]byte, n)
		scratch.Read(payload)

		dataPkt := wire.NewPacket(wire.CommandDataPackage, payload)
		if _, err := sock.WritePacket(&dataPkt); err != nil {
			return err
		}

		reply, err := c.readDataReply(sock)
		if err != nil {
			return err
		}

		switch reply.Command {
		case wire.CommandPackageAccepted:
			uploaded += uint64(n)
			packetsSent++
			retry = 0
		case wire.CommandChecksumError:
			retry++
		case wire.CommandAbort:
			return ErrServerAbort
		default:
			retry++
		}
	}

	if packetsSent != totalPackets {
		return ErrRetryBudgetExhausted
	}

	done := wire.NewPacket(wire.CommandAllDataSent, nil)
	_, err = sock.WritePacket(&done)
	return err
}

// splitApproval splits a REQUEST_APPROVED payload at the unambiguous 8+8
// offset: total packet count, then chunk size. This implementation
// deliberately does not reproduce the off-by-one size/2-1 split found in
// earlier drafts of this protocol.
func splitApproval(data []byte) (totalPackets, chunkSize uint64, err error) {
	if len(data) < 16 {
		return 0, 0, ErrMalformedApproval
	}
	return wire.Uint64BE(data[0:8]), wire.Uint64BE(data[8:16]), nil
}

// readHandshakeReply reads the server's reply to REQUEST_TO_SEND, retrying
// on any framing or checksum failure up to the retry budget.
func (c *Client) readHandshakeReply(sock *socket.Socket) (wire.Packet, error) {
	return c.readWithRetry(sock, true)
}

// readDataReply reads the server's reply to a DATA_PACKAGE. A below-minimum
// reply aborts immediately; only a checksum failure retries.
func (c *Client) readDataReply(sock *socket.Socket) (wire.Packet, error) {
	return c.readWithRetry(sock, false)
}

func (c *Client) readWithRetry(sock *socket.Socket, retryOnShortRead bool) (wire.Packet, error) {
	buf := make([]byte, wire.MaxPacketSize)
	attempts := 0

	for {
		n, err := sock.Read(buf)
		if err != nil {
			return wire.Packet{}, err
		}
		if n < wire.MinPacketSize {
			if !retryOnShortRead {
				return wire.Packet{}, ErrShortReply
			}
			if attempts++; attempts >= c.retryBudget {
				return wire.Packet{}, ErrRetryBudgetExhausted
			}
			c.sendChecksumError(sock)
			continue
		}

		pkt, perr := wire.Parse(buf[:n])
		if perr != nil || !pkt.VerifyChecksum() {
			if attempts++; attempts >= c.retryBudget {
				return wire.Packet{}, ErrRetryBudgetExhausted
			}
			// Tie-break: a reply whose CRC failed but whose command is
			// CHECKSUM_ERROR is handed back as that command without
			// sending a CHECKSUM_ERROR of our own, so the caller resends
			// its last packet.
			if perr == nil && pkt.Command == wire.CommandChecksumError {
				return pkt, nil
			}
			c.sendChecksumError(sock)
			continue
		}
		return pkt, nil
	}
}

func (c *Client) sendChecksumError(sock *socket.Socket) {
	pkt := wire.NewPacket(wire.CommandChecksumError, nil)
	if _, err := sock.WritePacket(&pkt); err != nil {
		c.logger.WithError(err).Warn("failed to send CHECKSUM_ERROR")
	}
}
