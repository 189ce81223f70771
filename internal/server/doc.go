// Package server implements the HTTP and WebSocket transport for the relay.
//
// The implementation is organized into specialized files for configuration,
// clients, routing, origin policy, and HTTP handlers. The coordination
// engine itself lives in internal/chat; this package only moves frames
// between connections and the dispatch gateway.
package server
