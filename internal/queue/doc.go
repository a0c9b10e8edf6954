// Package queue persists builds and their matrix jobs in SQLite.
//
// A build is one submission of a pipeline file; planning expands it into
// jobs, one per matrix leg. The daemon polls for created builds, the CLI
// reads the same database through the daemon's IPC surface.
package queue
