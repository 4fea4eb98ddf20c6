// Package store persists Canon Protocol state in SQLite and exposes the
// conditional transitions the lifecycle manager relies on.
//
// The Store manages connections, schema initialization, usage event
// appends with incremental aggregate updates, remaster job claiming, and
// the grouped aggregate queries behind the stats endpoint. Every state
// transition (topic status changes, job claims, promotion commits,
// demotions) is a conditional update guarded by the expected prior
// status, so a losing concurrent writer observes zero rows affected
// instead of clobbering the winner.
//
// Treat this package as the single source of truth for canon persistence
// semantics; schema changes go to schema.sql with a schemaVersion bump.
package store
