// Package server owns the rotating session password that every handshake
// is validated against.
package server

import (
	"sync"

	"github.com/google/uuid"
)

// PasswordManager holds the single process-wide session secret. Rotation
// happens on a fixed timer while the server runs and on demand from the
// operator; checks compare the candidate verbatim against the value current
// at check time, so a password superseded mid-handshake no longer matches.
type PasswordManager struct {
	mu    sync.RWMutex
	value string
}

// NewPasswordManager creates a manager holding a freshly generated secret.
func NewPasswordManager() *PasswordManager {
	return &PasswordManager{value: uuid.NewString()}
}

// Current returns the session password in effect right now.
func (p *PasswordManager) Current() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Rotate replaces the secret with a new random value and returns it.
// Callable both by the rotation timer and on operator demand.
func (p *PasswordManager) Rotate() string {
	next := uuid.NewString()

	p.mu.Lock()
	p.value = next
	p.mu.Unlock()

	return next
}

// Matches reports whether candidate equals the current session password.
func (p *PasswordManager) Matches(candidate string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value == candidate
}
