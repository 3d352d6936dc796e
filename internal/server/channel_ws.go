// Package server adapts gorilla WebSocket connections to the Channel
// abstraction so browser clients go through the same handshake and poll
// loop as plain TCP clients.
package server

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/netchat-io/netchat/internal/protocol"
)

// wsInboxSize buffers inbound frames between the read pump and the poll
// loop. WebSocket reads cannot be peeked without blocking, so a pump
// goroutine feeds this buffer and HasPendingData inspects its length.
const wsInboxSize = 32

type wsFrame struct {
	data []byte
	err  error
}

type wsChannel struct {
	conn *websocket.Conn
	addr string

	sendMu sync.Mutex
	inbox  chan wsFrame
	done   chan struct{}

	pumpDone atomic.Bool
	closed   atomic.Bool
}

// NewWebSocketChannel wraps an upgraded WebSocket connection and starts its
// read pump.
func NewWebSocketChannel(conn *websocket.Conn, maxFrameSize int) Channel {
	if maxFrameSize > 0 {
		conn.SetReadLimit(int64(maxFrameSize))
	}
	c := &wsChannel{
		conn:  conn,
		addr:  conn.RemoteAddr().String(),
		inbox: make(chan wsFrame, wsInboxSize),
		done:  make(chan struct{}),
	}
	go c.readPump()
	return c
}

// readPump moves inbound WebSocket messages into the inbox until the
// connection fails or closes. The final error is delivered in-band so the
// poll loop drains buffered frames before observing the closure.
func (c *wsChannel) readPump() {
	defer func() {
		c.pumpDone.Store(true)
		close(c.inbox)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() && !isExpectedCloseError(err) &&
				!websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure) {
				c.deliver(wsFrame{err: fmt.Errorf("reading frame from %s: %w", c.addr, err)})
			}
			return
		}
		if !c.deliver(wsFrame{data: data}) {
			return
		}
	}
}

// deliver queues a frame for the poll loop, giving up once the channel is
// closed so the pump never blocks on a torn-down connection.
func (c *wsChannel) deliver(frame wsFrame) bool {
	select {
	case c.inbox <- frame:
		return true
	case <-c.done:
		return false
	}
}

func (c *wsChannel) Send(env protocol.Envelope) error {
	frame, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed.Load() {
		return ErrChannelClosed
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if c.closed.Load() || isExpectedCloseError(err) {
			return ErrChannelClosed
		}
		return fmt.Errorf("writing frame to %s: %w", c.addr, err)
	}
	return nil
}

func (c *wsChannel) Receive() (protocol.Envelope, error) {
	var frame wsFrame
	var ok bool
	select {
	case frame, ok = <-c.inbox:
	case <-c.done:
		// Drain anything the pump queued before the close.
		select {
		case frame, ok = <-c.inbox:
		default:
		}
	}
	if !ok {
		return protocol.Envelope{}, ErrChannelClosed
	}
	if frame.err != nil {
		return protocol.Envelope{}, frame.err
	}
	return protocol.Decode(frame.data)
}

func (c *wsChannel) HasPendingData() bool {
	return len(c.inbox) > 0 || c.pumpDone.Load() || c.closed.Load()
}

func (c *wsChannel) RemoteAddr() string {
	return c.addr
}

func (c *wsChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	return c.conn.Close()
}
