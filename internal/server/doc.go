// Package server implements the HTTP and WebSocket transport for the channel
// relay.
//
// The implementation is organized into specialized files for configuration, hub
// management, clients, routing, and HTTP handlers. Channel membership and
// message handling live in the registry and router packages; this package
// only moves frames between sockets and the router.
package server
