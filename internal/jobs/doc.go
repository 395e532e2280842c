// Package jobs defines generation job records, their status state machine,
// and SQLite-backed persistence for the worker queue.
package jobs
