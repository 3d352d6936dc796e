// Package server implements the session lifecycle and broadcast core of the
// chat service.
//
// The implementation is organized into specialized files for configuration,
// the connection registry, channels, the handshake, the poll scheduler, and
// HTTP handlers to keep the codebase maintainable and testable as the
// project grows.
package server
