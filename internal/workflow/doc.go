// Package workflow drives submitted builds through their matrix legs.
//
// The Manager polls the queue for created builds, expands each build's
// pipeline file into legs, inserts one job per leg, and runs the jobs
// through the executor with bounded parallelism. When every job of a
// build has finished the manager aggregates the job statuses into the
// final build status.
//
// Legs of one build run in parallel up to runner.max_parallel_jobs;
// builds themselves are processed one at a time in submission order.
package workflow
