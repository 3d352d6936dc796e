// Package server fans messages out to every registered connection,
// tolerating per-recipient failure.
package server

import (
	"log"

	"github.com/netchat-io/netchat/internal/protocol"
)

// Broadcaster delivers envelopes to every channel in the registry. A
// failure sending to one recipient is logged and does not prevent delivery
// to the rest; a recipient that disconnects mid-fan-out is reconciled by
// its own poll loop.
type Broadcaster struct {
	registry *Registry
	logger   *log.Logger
}

// NewBroadcaster creates a dispatcher over the given registry.
func NewBroadcaster(registry *Registry, logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{registry: registry, logger: logger}
}

// Broadcast sends the envelope to every registered user. No ordering is
// guaranteed across recipients and delivery is best-effort.
func (b *Broadcaster) Broadcast(env protocol.Envelope) {
	for username, ch := range b.registry.Connections() {
		if err := ch.Send(env); err != nil {
			if !isExpectedCloseError(err) {
				b.logger.Printf("Error sending %s to %s: %v", env.Kind, username, err)
			}
		}
	}
}
