// Package ipc provides JSON-RPC communication between the scribe CLI and the
// daemon over a Unix domain socket. The server wraps the daemon's operations
// in typed request/response pairs and the client offers matching wrappers so
// command code never touches the wire format.
package ipc
