// Package daemon coordinates the long-running conveyor process.
//
// It wires configuration, queue storage, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// The daemon also exposes the build maintenance operations the IPC surface
// calls into: submit, list, describe, cancel, retry, and queue cleanup.
//
// Keep orchestration logic here: pipeline expansion and job execution live
// in their own packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
