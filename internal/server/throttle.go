// Package server implements the per-connection message throttle that
// protects the broadcast fan-out from flooding clients.
package server

import (
	"sync"
	"time"
)

// throttleCostUnit is the message size covered by one token. A chat line is
// charged one token plus one per additional started unit, so a client
// pasting large blobs drains its budget faster than one sending short
// lines.
const throttleCostUnit = 1024

// messageThrottle is a token bucket charged per message, with the cost
// scaled by message size.
type messageThrottle struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
}

func newMessageThrottle(burst int, refillInterval time.Duration) *messageThrottle {
	if burst <= 0 {
		burst = 1
	}
	if refillInterval <= 0 {
		refillInterval = time.Second
	}

	return &messageThrottle{
		tokens:    float64(burst),
		capacity:  float64(burst),
		rate:      float64(burst) / refillInterval.Seconds(),
		lastCheck: time.Now(),
	}
}

// allowMessage reports whether a message of the given size fits the
// sender's current budget, charging for it when it does.
func (t *messageThrottle) allowMessage(size int) bool {
	cost := 1.0 + float64(size/throttleCostUnit)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.lastCheck).Seconds()
	t.lastCheck = now

	if elapsed > 0 {
		t.tokens += elapsed * t.rate
		if t.tokens > t.capacity {
			t.tokens = t.capacity
		}
	}

	if t.tokens < cost {
		return false
	}
	t.tokens -= cost
	return true
}
