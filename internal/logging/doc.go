// Package logging builds the slog loggers used across mindcastd.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for log aggregation. Components tag their
// loggers via WithComponent so every line identifies its subsystem.
package logging
