// Package api exposes the daemon's HTTP surface: the request router,
// usage reporting, batch triggers, and the admin endpoints.
package api
