// Package server exposes the HTTP side of the service: the WebSocket
// upgrade endpoint feeding the same handshake as TCP clients, a health
// check, and the operator status page.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// startHTTP wires the HTTP listener. Called from Start with s.mu held.
func (s *Server) startHTTP() {
	checker := newOriginChecker(s.cfg.AllowedOrigins, s.logger)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checker.check,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.healthHandler)
	mux.HandleFunc("/ws", s.webSocketHandler(upgrader))
	mux.HandleFunc("/status", s.statusHandler)

	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	httpServer := s.httpServer
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("HTTP listener error: %v", err)
		}
	}()
}

// webSocketHandler upgrades the request and hands the connection to the
// regular handshake path, so WebSocket clients are indistinguishable from
// TCP clients past this point.
func (s *Server) webSocketHandler(upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		go s.handleIncoming(NewWebSocketChannel(conn, s.cfg.MaxFrameSize))
	}
}

// healthHandler reports that the service is up.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat server is %s", s.State())
}

// statusHandler renders the operator view: lifecycle state, uptime, and the
// online users with their message counters.
func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")

	state := s.State()
	_, _ = fmt.Fprintf(w, "State: %s\n", state)
	if state != StateRunning {
		return
	}

	s.mu.Lock()
	startedAt := s.startedAt
	s.mu.Unlock()
	_, _ = fmt.Fprintf(w, "Uptime: %s\n", time.Since(startedAt).Round(time.Second))

	usernames := s.registry.Snapshot()
	_, _ = fmt.Fprintf(w, "Online users: %d\n", len(usernames))
	for _, username := range usernames {
		info, ok := s.registry.MetadataFor(username)
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s: connected %s, %d messages, last at %s\n",
			info.Username,
			info.FirstConnection.Format("2006-01-02 15:04:05"),
			info.SentMessages,
			info.LastMessage.Format("15:04:05"))
	}
}
