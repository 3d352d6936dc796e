// Package server negotiates username and session password with each new
// connection before it is promoted into the registry.
package server

import (
	"fmt"
	"log"
	"strings"

	"github.com/netchat-io/netchat/internal/protocol"
)

// handshake drives the per-connection authentication state machine:
// AwaitingUsername -> AwaitingPassword -> Accepted or Rejected. A rejected
// attempt that leaves the channel usable loops back for another try; a
// receive failure or disconnect signal rejects the socket terminally.
type handshake struct {
	ch          Channel
	registry    *Registry
	passwords   *PasswordManager
	broadcaster *Broadcaster
	notifier    *PresenceNotifier
	logger      *log.Logger
}

// run blocks until the peer authenticates or gives up. On success the user
// is registered, told the current online set, and announced to everyone
// else; the accepted username is returned. On failure the registry is left
// without any trace of this connection.
func (h *handshake) run() (string, error) {
	for {
		usernameReply, err := h.exchange(protocol.KindRequestUsername)
		if err != nil {
			return "", err
		}
		passwordReply, err := h.exchange(protocol.KindRequestPassword)
		if err != nil {
			return "", err
		}

		username := strings.TrimSpace(usernameReply.Text)
		if h.validate(usernameReply, passwordReply, username) {
			if err := h.accept(username); err != nil {
				return "", err
			}
			return username, nil
		}

		h.logger.Printf("Login attempt rejected for remote socket %s", h.ch.RemoteAddr())
		if err := h.ch.Send(protocol.NewSignal(protocol.KindLoginError)); err != nil {
			return "", fmt.Errorf("%w: %v", ErrPeerAborted, err)
		}
	}
}

// exchange sends one request signal and waits for the peer's reply. Any
// receive failure or an explicit disconnect rejects the handshake with
// ErrPeerAborted.
func (h *handshake) exchange(request protocol.Kind) (protocol.Envelope, error) {
	if err := h.ch.Send(protocol.NewSignal(request)); err != nil {
		return protocol.Envelope{}, fmt.Errorf("%w: %v", ErrPeerAborted, err)
	}
	reply, err := h.ch.Receive()
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("%w: %v", ErrPeerAborted, err)
	}
	if reply.Kind == protocol.KindDisconnect {
		return protocol.Envelope{}, ErrPeerAborted
	}
	return reply, nil
}

// validate accepts the attempt iff the reply kinds carry the expected tags,
// the trimmed username is non-empty, the submitted password matches the
// session password current right now, and the name is still free. The
// password is checked at validation time, not capture time: a rotation
// between the two receive steps fails the attempt.
func (h *handshake) validate(usernameReply, passwordReply protocol.Envelope, username string) bool {
	if usernameReply.Kind != protocol.KindNewUsername ||
		passwordReply.Kind != protocol.KindNewPassword {
		return false
	}
	if username == "" {
		return false
	}
	if !h.passwords.Matches(passwordReply.Text) {
		return false
	}
	// Checked-and-inserted atomically, so two handshakes racing on the
	// same name resolve to exactly one winner.
	return h.registry.TryRegister(username, h.ch)
}

// accept finishes a validated handshake: the caller gets the registry
// snapshot, everyone else learns about the new user, and the presence
// observers are told. A failure delivering LOGIN_ACCEPTED rolls the
// registration back and rejects the socket.
func (h *handshake) accept(username string) error {
	accepted := protocol.NewUserList(protocol.KindLoginAccepted, h.registry.Snapshot())
	if err := h.ch.Send(accepted); err != nil {
		h.registry.Unregister(username)
		return fmt.Errorf("%w: %v", ErrPeerAborted, err)
	}

	h.broadcaster.Broadcast(protocol.NewText(protocol.KindNewUserAdded, username))
	h.notifier.NotifyAdded(username)
	return nil
}
