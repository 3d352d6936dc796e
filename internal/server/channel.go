// Package server wraps individual client sockets in a Channel with
// independent, mutex-guarded send and receive paths.
package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netchat-io/netchat/internal/protocol"
)

// peekTimeout bounds how long HasPendingData may touch the socket while
// checking for a buffered byte.
const peekTimeout = time.Millisecond

// Channel is the bidirectional envelope stream for one connected peer.
// Send and Receive may be used concurrently from independent goroutines;
// each path serializes against itself so frames never interleave.
type Channel interface {
	io.Closer

	// Send serializes the envelope and writes one complete frame.
	Send(env protocol.Envelope) error

	// Receive blocks until a full frame is available or the peer closes.
	Receive() (protocol.Envelope, error)

	// HasPendingData reports, without blocking, whether a Receive would
	// return immediately. A closed channel reports true so the caller's
	// next Receive surfaces ErrChannelClosed and drives cleanup.
	HasPendingData() bool

	// RemoteAddr identifies the peer for operator log lines.
	RemoteAddr() string
}

// tcpChannel implements Channel over a plain TCP socket with one JSON
// envelope per line.
type tcpChannel struct {
	conn net.Conn

	sendMu sync.Mutex
	recvMu sync.Mutex
	reader *bufio.Reader

	closed atomic.Bool
}

// NewTCPChannel wraps an accepted socket. maxFrameSize bounds the length of
// a single inbound frame; longer frames are reported as malformed.
func NewTCPChannel(conn net.Conn, maxFrameSize int) Channel {
	if maxFrameSize < 64 {
		maxFrameSize = 64
	}
	return &tcpChannel{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, maxFrameSize),
	}
}

func (c *tcpChannel) Send(env protocol.Envelope) error {
	frame, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed.Load() {
		return ErrChannelClosed
	}
	if _, err := c.conn.Write(append(frame, '\n')); err != nil {
		if c.closed.Load() || errors.Is(err, net.ErrClosed) {
			return ErrChannelClosed
		}
		return fmt.Errorf("writing frame to %s: %w", c.conn.RemoteAddr(), err)
	}
	return nil
}

func (c *tcpChannel) Receive() (protocol.Envelope, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	if c.closed.Load() {
		return protocol.Envelope{}, ErrChannelClosed
	}

	line, err := c.reader.ReadSlice('\n')
	if err != nil {
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			return protocol.Envelope{}, fmt.Errorf("%w: frame too long", protocol.ErrMalformedFrame)
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
			return protocol.Envelope{}, ErrChannelClosed
		default:
			if c.closed.Load() {
				return protocol.Envelope{}, ErrChannelClosed
			}
			return protocol.Envelope{}, fmt.Errorf("reading frame from %s: %w", c.conn.RemoteAddr(), err)
		}
	}

	return protocol.Decode(line)
}

// HasPendingData first checks the read buffer, then peeks the socket under
// an immediate deadline so an idle connection never blocks the caller.
func (c *tcpChannel) HasPendingData() bool {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	if c.closed.Load() {
		return true
	}
	if c.reader.Buffered() > 0 {
		return true
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(peekTimeout)); err != nil {
		return true
	}
	_, err := c.reader.Peek(1)
	_ = c.conn.SetReadDeadline(time.Time{})

	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return false
	}
	// EOF or transport fault: report pending so Receive runs and the poll
	// loop observes the closed channel.
	return true
}

func (c *tcpChannel) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close shuts down both directions and releases the socket. Safe to call
// from any path; only the first call has an effect.
func (c *tcpChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
