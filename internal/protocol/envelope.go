// Package protocol defines the message envelope exchanged between chat
// clients and the server, and the newline-delimited JSON codec that carries
// it over a byte stream.
package protocol

// Kind discriminates the payload of an Envelope. The values are the enum
// names used on the wire, so unmodified peers stay compatible.
type Kind string

// Envelope kinds understood by the server and its clients.
const (
	KindRequestUsername Kind = "REQUEST_USERNAME"
	KindRequestPassword Kind = "REQUEST_PASSWORD"
	KindNewUsername     Kind = "NEW_USERNAME"
	KindNewPassword     Kind = "NEW_PASSWORD"
	KindLoginError      Kind = "LOGIN_ERROR"
	KindLoginAccepted   Kind = "LOGIN_ACCEPTED"
	KindTextMessage     Kind = "TEXT_MESSAGE"
	KindNewUserAdded    Kind = "NEW_USER_ADDED"
	KindUserDeleted     Kind = "USER_DELETED"
	KindDisconnect      Kind = "DISCONNECT"
)

var knownKinds = map[Kind]struct{}{
	KindRequestUsername: {},
	KindRequestPassword: {},
	KindNewUsername:     {},
	KindNewPassword:     {},
	KindLoginError:      {},
	KindLoginAccepted:   {},
	KindTextMessage:     {},
	KindNewUserAdded:    {},
	KindUserDeleted:     {},
	KindDisconnect:      {},
}

// Valid reports whether k is one of the kinds defined by the protocol.
func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// Envelope is the discriminated message unit exchanged over the wire.
// Exactly one of Text and Usernames is populated depending on Kind; both
// may be absent for signal-only kinds such as DISCONNECT. Envelopes are
// treated as immutable once constructed.
type Envelope struct {
	Kind      Kind     `json:"messageType"`
	Text      string   `json:"messageText,omitempty"`
	Usernames []string `json:"connectedUsernames,omitempty"`
}

// NewSignal builds an envelope that carries no payload.
func NewSignal(kind Kind) Envelope {
	return Envelope{Kind: kind}
}

// NewText builds an envelope carrying a text payload.
func NewText(kind Kind, text string) Envelope {
	return Envelope{Kind: kind, Text: text}
}

// NewUserList builds an envelope carrying a set of usernames. The slice is
// copied so later mutation by the caller cannot leak into the envelope.
func NewUserList(kind Kind, usernames []string) Envelope {
	return Envelope{Kind: kind, Usernames: append([]string(nil), usernames...)}
}
