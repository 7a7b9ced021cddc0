// Package session implements the server-side per-connection transfer
// state: protocol phase, counters, the output file handle, and the three
// packet slots the reactor handlers sequence through. It is grounded on
// the teacher's SDOServer (pkg/sdo/server.go) — a streamer/buffer/counter
// bundle wrapping one object-dictionary entry — generalized to a bundle
// wrapping one output file.
package session

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/filexfer/internal/fifo"
	"github.com/samsamfire/filexfer/internal/fsutil"
	"github.com/samsamfire/filexfer/internal/idgen"
	"github.com/samsamfire/filexfer/pkg/wire"
)

// Phase is a server-session state.
type Phase int

const (
	PhaseAwaitFileSize Phase = iota
	PhaseReceiveFile
	PhaseAwaitFinalMessage
	PhaseAbort
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitFileSize:
		return "AWAIT_FILE_SIZE"
	case PhaseReceiveFile:
		return "RECEIVE_FILE"
	case PhaseAwaitFinalMessage:
		return "AWAIT_FINAL_MESSAGE"
	case PhaseAbort:
		return "ABORT"
	default:
		return "UNKNOWN_PHASE"
	}
}

const (
	smallFileThreshold = 1024
	mibThreshold       = 1 << 20
	smallChunkSize     = 1024
	largeChunkSize     = 2048
)

var (
	// ErrNoOutputDir is returned by CanSave when no save path is configured.
	ErrNoOutputDir = errors.New("session: no output directory configured")
	// ErrInsufficientSpace is returned when free disk space is below the
	// requested size.
	ErrInsufficientSpace = errors.New("session: insufficient free disk space")
	// ErrFileNotOpen is returned by WriteToFile before OpenFile has run.
	ErrFileNotOpen = errors.New("session: output file is not open")
	// ErrShortBuffer is returned when n exceeds the supplied buffer length.
	ErrShortBuffer = errors.New("session: requested write exceeds buffer length")
)

// ChunkPlan computes the per-packet chunk size and total packet count for
// a declared file size, per the fixed thresholds the protocol specifies.
func ChunkPlan(fileSize uint64) (chunkSize uint64, expectedPackets uint64) {
	if fileSize < smallFileThreshold {
		return fileSize, 1
	}
	if fileSize < mibThreshold {
		chunkSize = smallChunkSize
	} else {
		chunkSize = largeChunkSize
	}
	expectedPackets = (fileSize + chunkSize - 1) / chunkSize
	return chunkSize, expectedPackets
}

// Session is the server-side per-connection transfer state. It owns
// exactly zero or one writable file handle at all times.
type Session struct {
	Phase Phase

	ExpectedBytes   uint64
	ExpectedPackets uint64
	ReceivedPackets uint64
	ReceivedBytes   uint64
	ChunkSize       uint64

	FileName   string
	outputDir  string
	outputPath string
	file       *os.File

	LastSent     wire.Packet
	PendingSend  wire.Packet
	LastReceived wire.Packet

	// scratch decouples one incoming DATA_PACKAGE's bytes from the disk
	// write, the way the teacher's streamer buffers a segment before it
	// lands in the object dictionary.
	scratch *fifo.Fifo

	StartedAt time.Time

	logger *log.Entry
}

// New creates a session rooted at outputDir, with a freshly generated file
// name. outputDir == "" is legal; CanSave will then always refuse.
func New(outputDir string) *Session {
	return &Session{
		Phase:     PhaseAwaitFileSize,
		FileName:  idgen.FileName(),
		outputDir: outputDir,
		scratch:   fifo.New(largeChunkSize + 1),
		StartedAt: time.Now(),
		logger:    log.WithField("component", "session"),
	}
}

// RegenerateFileName produces a fresh name once, used when the first name
// collides with an existing file.
func (s *Session) RegenerateFileName() {
	s.FileName = idgen.FileName()
}

// CanSave reports whether the configured path is usable and has at least
// size bytes of free space.
func (s *Session) CanSave(size uint64) error {
	if s.outputDir == "" {
		return ErrNoOutputDir
	}
	free, err := fsutil.FreeSpace(s.outputDir)
	if err != nil {
		return err
	}
	if free < size {
		return ErrInsufficientSpace
	}
	return nil
}

// OpenFile lazily creates/truncates the output file on first use.
func (s *Session) OpenFile() error {
	if s.file != nil {
		return nil
	}
	path := filepath.Join(s.outputDir, s.FileName)
	if fsutil.Exists(path) {
		s.RegenerateFileName()
		path = filepath.Join(s.outputDir, s.FileName)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	s.file = f
	s.outputPath = path
	return nil
}

// WriteToFile writes the first n bytes of buf to the open output file,
// updating the byte/packet counters on success. The bytes are routed
// through the session's scratch fifo rather than straight to disk, so the
// write path is never coupled to the size of the caller's read buffer.
func (s *Session) WriteToFile(buf []byte, n int) error {
	if s.file == nil {
		return ErrFileNotOpen
	}
	if n > len(buf) {
		return ErrShortBuffer
	}
	if err := s.CanSave(uint64(n)); err != nil {
		return err
	}

	s.scratch.Reset()
	if written := s.scratch.Write(buf[:n]); written != n {
		return ErrShortBuffer
	}
	staged := make([]byte, n)
	s.scratch.Read(staged)

	if _, err := s.file.Write(staged); err != nil {
		return err
	}
	s.ReceivedBytes += uint64(n)
	s.ReceivedPackets++
	return nil
}

// Reset closes the output file, deletes the partial artifact, and zeroes
// the transfer counters. The server calls it when a read or write on the
// connection fails or the peer closes it.
func (s *Session) Reset() {
	s.closeAndMaybeDelete(true)
	s.scratch.Reset()
	s.ReceivedPackets = 0
	s.ReceivedBytes = 0
	s.Phase = PhaseAwaitFileSize
}

// Close ends the session's lifetime. If the output file is open and the
// transfer did not complete, the partial file is removed.
func (s *Session) Close() {
	s.closeAndMaybeDelete(s.ReceivedPackets < s.ExpectedPackets)
}

func (s *Session) closeAndMaybeDelete(delete bool) {
	if s.file == nil {
		return
	}
	path := s.outputPath
	if err := s.file.Close(); err != nil {
		s.logger.WithError(err).Warn("error closing output file")
	}
	s.file = nil
	if delete && path != "" {
		if err := fsutil.Remove(path); err != nil {
			s.logger.WithError(err).Warn("error removing partial output file")
		}
	}
}

// Complete reports whether the declared number of packets has arrived.
func (s *Session) Complete() bool {
	return s.ReceivedPackets >= s.ExpectedPackets
}
