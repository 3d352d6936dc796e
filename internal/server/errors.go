// Package server defines the error taxonomy shared across the connection,
// handshake, and lifecycle code.
package server

import (
	"errors"
	"strings"
)

var (
	// ErrChannelClosed reports that the peer has ended the stream or the
	// channel was torn down locally. It is expected during cleanup and is
	// not logged as an anomaly.
	ErrChannelClosed = errors.New("connection channel closed")

	// ErrPeerAborted reports that a client gave up during the handshake.
	// Terminal for that socket only.
	ErrPeerAborted = errors.New("peer aborted during handshake")

	// ErrServerRunning is returned when an operation requires a stopped
	// server, such as starting it a second time.
	ErrServerRunning = errors.New("server is already running")

	// ErrServerStopped is returned for operations that only make sense on
	// a running server, such as reading the session password.
	ErrServerStopped = errors.New("server is not running")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrChannelClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
