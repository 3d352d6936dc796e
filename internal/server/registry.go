// Package server maintains the shared directory of authenticated users:
// username to channel, username to usage metadata, mutated only under the
// registry's own lock.
package server

import (
	"sync"
	"time"
)

// UserMetaInfo carries the per-user counters kept alongside a connection.
// Purely observational; never consulted for access control.
type UserMetaInfo struct {
	Username        string
	FirstConnection time.Time
	LastMessage     time.Time
	SentMessages    int
}

// Registry is the thread-safe directory of currently authenticated users.
// The connection map and metadata map are mutated together under one lock,
// so a reader never observes one updated without the other.
type Registry struct {
	mu    sync.Mutex
	conns map[string]Channel
	meta  map[string]*UserMetaInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Channel),
		meta:  make(map[string]*UserMetaInfo),
	}
}

// TryRegister inserts the user if and only if no entry for username exists,
// creating its metadata in the same atomic step. It reports whether the
// insert happened; on conflict nothing is mutated.
func (r *Registry) TryRegister(username string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.conns[username]; taken {
		return false
	}

	now := time.Now()
	r.conns[username] = ch
	r.meta[username] = &UserMetaInfo{
		Username:        username,
		FirstConnection: now,
		LastMessage:     now,
	}
	return true
}

// Unregister removes the username from both maps. No-op if absent, so
// racing cleanup paths stay idempotent.
func (r *Registry) Unregister(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, username)
	delete(r.meta, username)
}

// Snapshot returns a point-in-time copy of the registered usernames.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.conns))
	for username := range r.conns {
		names = append(names, username)
	}
	return names
}

// Connections returns a point-in-time copy of the username-to-channel map,
// used by the broadcast dispatcher so delivery never iterates live state.
func (r *Registry) Connections() map[string]Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make(map[string]Channel, len(r.conns))
	for username, ch := range r.conns {
		conns[username] = ch
	}
	return conns
}

// MetadataFor returns a copy of the user's metadata, if registered.
func (r *Registry) MetadataFor(username string) (UserMetaInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.meta[username]
	if !ok {
		return UserMetaInfo{}, false
	}
	return *info, true
}

// RecordMessage bumps the user's last-message time and counter. A message
// arriving concurrently with a disconnect finds no entry and is a no-op.
func (r *Registry) RecordMessage(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.meta[username]
	if !ok {
		return
	}
	info.LastMessage = time.Now()
	info.SentMessages++
}

// Len reports how many users are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
