// Package daemon wires the mindcastd process: store, usage recorder,
// scheduler, remaster worker, and the HTTP API, behind a single-instance
// file lock.
package daemon
