// Package daemon coordinates the long-running scribe process.
//
// It wires configuration, the file catalog, and the pipeline monitor into a
// single lifecycle with flock-based locking to prevent multiple instances.
// The daemon exposes catalog queries, status snapshots, and event streaming
// to the IPC layer.
//
// Keep orchestration logic here: individual pipeline phases live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
