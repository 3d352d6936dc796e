// Package server implements the listener lifecycle for the chat service:
// an observable Stopped -> Running -> Stopped state machine that owns the
// accept loop, the password rotation timer, and the poll scheduler.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"
)

// State describes the listener lifecycle.
type State int32

// Lifecycle states.
const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Server is the chat service core: it accepts TCP connections, runs the
// handshake on each, and drives every authenticated connection through the
// shared poll scheduler. The registry and the password manager are the only
// mutable shared state, each behind its own synchronization.
type Server struct {
	cfg    Config
	logger *log.Logger

	registry    *Registry
	passwords   *PasswordManager
	notifier    *PresenceNotifier
	broadcaster *Broadcaster
	scheduler   *pollScheduler

	mu         sync.Mutex
	state      State
	sessions   map[*session]struct{}
	listener   net.Listener
	httpServer *http.Server
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	startedAt  time.Time
}

// NewServer constructs a stopped server from the given configuration. A nil
// config or logger falls back to defaults. Nothing is shared between two
// servers built this way, so tests construct them in isolation.
func NewServer(cfg *Config, logger *log.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	sanitized := sanitizeConfig(*cfg)

	registry := NewRegistry()
	return &Server{
		cfg:         sanitized,
		logger:      logger,
		registry:    registry,
		passwords:   NewPasswordManager(),
		notifier:    NewPresenceNotifier(),
		broadcaster: NewBroadcaster(registry, logger),
		scheduler:   newPollScheduler(sanitized.PollInterval, sanitized.PollWorkers),
		sessions:    make(map[*session]struct{}),
	}
}

// State reports the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound TCP listener address, or the empty string while
// stopped. Useful when the configured port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Registry exposes the connection registry for observational reads.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Subscribe registers a presence observer with the notifier.
func (s *Server) Subscribe(observer PresenceObserver) {
	s.notifier.Subscribe(observer)
}

// Unsubscribe removes a presence observer.
func (s *Server) Unsubscribe(observer PresenceObserver) {
	s.notifier.Unsubscribe(observer)
}

// SessionPassword returns the password clients must present to join.
// Only meaningful while running.
func (s *Server) SessionPassword() (string, error) {
	if s.State() != StateRunning {
		s.logger.Println("Invalid operation. Server is not running yet")
		return "", ErrServerStopped
	}
	return s.passwords.Current(), nil
}

// RotatePassword replaces the session password on operator demand and
// returns the new value. Only meaningful while running.
func (s *Server) RotatePassword() (string, error) {
	if s.State() != StateRunning {
		s.logger.Println("Invalid operation. Server is not running yet")
		return "", ErrServerStopped
	}
	password := s.passwords.Rotate()
	s.logger.Printf("Password for current session: %s", password)
	return password, nil
}

// Start binds the listeners and transitions Stopped -> Running. The session
// password is regenerated so a previous run's secret never survives a
// restart.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrServerRunning
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.logger.Printf("Couldn't launch the server: %v", err)
		return fmt.Errorf("starting chat listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel
	s.state = StateRunning
	s.startedAt = time.Now()

	password := s.passwords.Rotate()
	s.logger.Printf("Server has launched on %s", listener.Addr())
	s.logger.Printf("Password for current session: %s", password)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.scheduler.run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.rotationLoop(ctx)
	}()
	go s.acceptLoop(listener)

	if s.cfg.HTTPAddr != "" {
		s.startHTTP()
	}

	return nil
}

// Stop transitions Running -> Stopped: the listeners close, every connected
// user is dropped with a presence-remove, and the background loops wind
// down.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		s.logger.Println("Invalid operation. Server is not running yet")
		return ErrServerStopped
	}
	s.state = StateStopped
	listener := s.listener
	httpServer := s.httpServer
	s.listener = nil
	s.httpServer = nil
	s.cancel()
	s.mu.Unlock()

	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Printf("Error closing chat listener: %v", err)
	}
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Printf("HTTP server shutdown error: %v", err)
		}
		cancel()
	}

	s.closeAllUsers()
	s.wg.Wait()

	s.logger.Println("Server was stopped")
	return nil
}

// closeAllUsers drops every connected user through its session's own
// teardown, so the poll task is cancelled and a worker racing a tick cannot
// remove the same user twice. Stale tasks surviving into a restart would
// tear down fresh registrations bearing the same names.
func (s *Server) closeAllUsers() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.teardown()
	}

	// A connection finishing its handshake while Stop is underway has a
	// registry entry but no tracked session yet.
	for username, ch := range s.registry.Connections() {
		_ = ch.Close()
		s.registry.Unregister(username)
		s.notifier.NotifyRemoved(username)
	}
}

// trackSession records a live session for Stop to tear down. Refused once
// the server has left the running state.
func (s *Server) trackSession(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return false
	}
	s.sessions[sess] = struct{}{}
	return true
}

func (s *Server) dropSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// rotationLoop replaces the session password on a fixed interval until the
// server stops. Rotation itself cannot fail, so the loop only ever exits
// through the context.
func (s *Server) rotationLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PasswordTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			password := s.passwords.Rotate()
			s.logger.Printf("Password for current session: %s", password)
		}
	}
}

// acceptLoop hands each accepted socket to its own handshake goroutine.
// Per-connection faults never reach this loop; only a listener failure ends
// it, which is surfaced as the server-stopped state.
func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Printf("Connection to the listener is lost: %v", err)
			go func() { _ = s.Stop() }()
			return
		}

		go s.handleIncoming(NewTCPChannel(conn, s.cfg.MaxFrameSize))
	}
}

// handleIncoming runs the handshake synchronously on this goroutine and, on
// success, schedules the connection's recurring poll task. A rejected
// socket is closed and never polled.
func (s *Server) handleIncoming(ch Channel) {
	hs := &handshake{
		ch:          ch,
		registry:    s.registry,
		passwords:   s.passwords,
		broadcaster: s.broadcaster,
		notifier:    s.notifier,
		logger:      s.logger,
	}

	username, err := hs.run()
	if err != nil {
		if !isExpectedCloseError(err) {
			s.logger.Printf("An error occurred when connecting a new user: %v", err)
		}
		_ = ch.Close()
		return
	}

	sess := &session{
		username:    username,
		ch:          ch,
		registry:    s.registry,
		broadcaster: s.broadcaster,
		notifier:    s.notifier,
		scheduler:   s.scheduler,
		limiter:     newMessageThrottle(s.cfg.RateLimit.Burst, s.cfg.RateLimit.RefillInterval),
		logger:      s.logger,
	}
	sess.onClose = func() { s.dropSession(sess) }

	if !s.trackSession(sess) {
		// Stop won the race; undo the registration the same way a
		// disconnect would.
		sess.teardown()
		return
	}
	sess.taskID = s.scheduler.Schedule(sess.tick)
	if sess.closed.Load() {
		// Teardown ran before the task id was assigned and cancelled id
		// zero, so cancel the real one.
		s.scheduler.Cancel(sess.taskID)
	}

	s.logger.Printf("A new user connected with a remote socket %s", ch.RemoteAddr())
}
