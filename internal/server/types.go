// Package server defines shared connection state, sentinel errors and utility
// helpers that are reused across client and hub logic.
package server

import (
	"errors"
	"strings"
)

var (
	// ErrConnectionClosed is returned by Client.Send once the client is no
	// longer open.
	ErrConnectionClosed = errors.New("connection is not open")
	// ErrSendBufferFull is returned by Client.Send when the outbound queue
	// has no room left.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrHubStopped is returned when a client is registered after shutdown.
	ErrHubStopped = errors.New("hub stopped")
)

type connState int

const (
	stateOpen connState = iota
	stateClosing
	stateClosed
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
