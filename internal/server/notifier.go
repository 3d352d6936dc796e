// Package server notifies registered observers, such as the operator
// console, about presence changes in the registry.
package server

import "sync"

// PresenceObserver receives add/remove events whenever registry membership
// changes. Calls happen synchronously on the mutating goroutine, in
// subscriber-registration order; observers must be fast and local.
type PresenceObserver interface {
	UserAdded(username string)
	UserRemoved(username string)
}

// PresenceNotifier fans presence events out to every current subscriber.
type PresenceNotifier struct {
	mu        sync.Mutex
	observers []PresenceObserver
}

// NewPresenceNotifier creates a notifier with no subscribers.
func NewPresenceNotifier() *PresenceNotifier {
	return &PresenceNotifier{}
}

// Subscribe adds an observer. Subsequent events are delivered to it after
// all previously registered observers.
func (n *PresenceNotifier) Subscribe(observer PresenceObserver) {
	if observer == nil {
		return
	}
	n.mu.Lock()
	n.observers = append(n.observers, observer)
	n.mu.Unlock()
}

// Unsubscribe removes a previously subscribed observer. No-op if absent.
func (n *PresenceNotifier) Unsubscribe(observer PresenceObserver) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, existing := range n.observers {
		if existing == observer {
			n.observers = append(n.observers[:i], n.observers[i+1:]...)
			return
		}
	}
}

func (n *PresenceNotifier) snapshot() []PresenceObserver {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]PresenceObserver(nil), n.observers...)
}

// NotifyAdded reports that username joined the registry.
func (n *PresenceNotifier) NotifyAdded(username string) {
	for _, observer := range n.snapshot() {
		observer.UserAdded(username)
	}
}

// NotifyRemoved reports that username left the registry.
func (n *PresenceNotifier) NotifyRemoved(username string) {
	for _, observer := range n.snapshot() {
		observer.UserRemoved(username)
	}
}
