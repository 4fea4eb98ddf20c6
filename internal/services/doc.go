// Package services defines the shared error taxonomy consumed by the
// batch jobs, the HTTP layer, and the external pipeline clients.
//
// Errors are tagged with sentinel markers via Wrap; Kind translates a
// tagged error into the machine-readable classification the API exposes,
// and Retryable decides whether the retry utility may attempt the call
// again.
package services
