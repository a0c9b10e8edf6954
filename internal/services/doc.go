// Package services holds cross-cutting helpers shared by the daemon, the
// executor, and the CLI: error classification sentinels and context keys for
// build/job correlation.
package services
