// Package server runs the post-handshake life of a connection: one poll
// tick at a time, routing chat text to the broadcast fan-out and
// disconnects to cleanup.
package server

import (
	"log"
	"strings"
	"sync/atomic"

	"github.com/netchat-io/netchat/internal/protocol"
)

// session binds an authenticated user to its channel and the shared core
// state. Its tick method is the recurring poll task for this connection.
type session struct {
	username    string
	ch          Channel
	registry    *Registry
	broadcaster *Broadcaster
	notifier    *PresenceNotifier
	scheduler   *pollScheduler
	limiter     *messageThrottle
	logger      *log.Logger

	// onClose, when set, is invoked once after teardown completes so the
	// server can forget this session.
	onClose func()

	taskID uint64
	closed atomic.Bool
}

// tick checks the connection for one pending inbound frame and routes it.
// An idle connection makes the tick a no-op so a silent client never holds
// a pool worker.
func (s *session) tick() {
	if s.closed.Load() {
		return
	}
	if !s.ch.HasPendingData() {
		return
	}

	env, err := s.ch.Receive()
	if err != nil {
		if !isExpectedCloseError(err) {
			s.logger.Printf("An error occurred when receiving from user %s at %s: %v",
				s.username, s.ch.RemoteAddr(), err)
		}
		s.teardown()
		return
	}

	switch env.Kind {
	case protocol.KindTextMessage:
		s.handleText(env.Text)
	case protocol.KindDisconnect:
		s.disconnect()
	default:
		// Unknown kinds are ignored for forward compatibility.
	}
}

// handleText broadcasts a chat line with sender attribution and records it
// in the user's metadata. Blank messages are dropped; a flooding client is
// throttled by the token bucket.
func (s *session) handleText(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if !s.limiter.allowMessage(len(text)) {
		s.logger.Printf("Rate limit exceeded for %s; discarding message", s.username)
		return
	}

	formatted := protocol.FormatUserMessage(s.username, text)
	s.broadcaster.Broadcast(protocol.NewText(protocol.KindTextMessage, formatted))
	s.registry.RecordMessage(s.username)
}

// disconnect handles an explicit DISCONNECT: everyone still connected is
// told the user left, then the connection is torn down.
func (s *session) disconnect() {
	s.broadcaster.Broadcast(protocol.NewText(protocol.KindUserDeleted, s.username))
	s.logger.Printf("The user %s at %s has disconnected", s.username, s.ch.RemoteAddr())
	s.teardown()
}

// teardown is the single cleanup path for this connection: cancel the poll
// task, drop the registry entries, close the channel, and emit the
// presence-remove. Idempotent, so a fault during cleanup or a racing stop
// cannot double-remove or double-close.
func (s *session) teardown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.scheduler.Cancel(s.taskID)
	s.registry.Unregister(s.username)
	_ = s.ch.Close()
	s.notifier.NotifyRemoved(s.username)
	if s.onClose != nil {
		s.onClose()
	}
}
