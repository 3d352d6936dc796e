// Package protocol implements the frame codec: one JSON object per line,
// decoded back into the envelope it was encoded from.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedFrame reports a frame that could not be decoded into a valid
// envelope. It is a protocol violation by the peer; only that connection
// should be dropped.
var ErrMalformedFrame = errors.New("malformed protocol frame")

// Encode serializes an envelope into a single frame, without the trailing
// line terminator. JSON string escaping guarantees the frame itself never
// contains a raw newline.
func Encode(env Envelope) ([]byte, error) {
	if !env.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedFrame, env.Kind)
	}
	return json.Marshal(env)
}

// Decode parses a single frame back into an envelope. It is the exact
// inverse of Encode. Malformed input yields ErrMalformedFrame and never a
// partially populated envelope.
func Decode(frame []byte) (Envelope, error) {
	trimmed := strings.TrimSpace(string(frame))
	if trimmed == "" {
		return Envelope{}, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if !env.Kind.Valid() {
		return Envelope{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedFrame, env.Kind)
	}

	return env, nil
}
