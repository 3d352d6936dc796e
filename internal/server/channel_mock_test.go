package server

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/netchat-io/netchat/internal/protocol"
)

var errFaultedChannel = errors.New("simulated transport fault")

// mockChannel is an in-memory Channel used to exercise the handshake,
// session, and broadcast logic without sockets. Tests push envelopes into
// fromClient to simulate the peer sending, and pop from toClient to observe
// what the server sent.
type mockChannel struct {
	fromClient chan protocol.Envelope
	toClient   chan protocol.Envelope
	stop       chan struct{}
	closed     atomic.Bool

	// failSend, when set, makes every Send fail as a transport fault.
	failSend atomic.Bool
}

func newMockChannel() *mockChannel {
	return &mockChannel{
		fromClient: make(chan protocol.Envelope, 16),
		toClient:   make(chan protocol.Envelope, 100),
		stop:       make(chan struct{}),
	}
}

func (mc *mockChannel) Send(env protocol.Envelope) error {
	if mc.closed.Load() {
		return ErrChannelClosed
	}
	if mc.failSend.Load() {
		return errFaultedChannel
	}
	mc.toClient <- env
	return nil
}

func (mc *mockChannel) Receive() (protocol.Envelope, error) {
	select {
	case env := <-mc.fromClient:
		return env, nil
	case <-mc.stop:
		return protocol.Envelope{}, ErrChannelClosed
	}
}

func (mc *mockChannel) HasPendingData() bool {
	return len(mc.fromClient) > 0 || mc.closed.Load()
}

func (mc *mockChannel) RemoteAddr() string {
	return "mock:0"
}

func (mc *mockChannel) Close() error {
	if mc.closed.CompareAndSwap(false, true) {
		close(mc.stop)
	}
	return nil
}

// clientSend simulates the peer sending a frame to the server.
func (mc *mockChannel) clientSend(env protocol.Envelope) {
	mc.fromClient <- env
}

// clientRecv waits for a frame the server sent to the peer.
func (mc *mockChannel) clientRecv(timeout time.Duration) (protocol.Envelope, bool) {
	select {
	case env := <-mc.toClient:
		return env, true
	case <-time.After(timeout):
		return protocol.Envelope{}, false
	}
}
