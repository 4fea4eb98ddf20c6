// Package canon defines the domain model for the Canon Protocol: topics,
// their usage events, and remaster jobs.
//
// A Topic is a canonicalized subject that accrues usage signals. Topics
// start cold, become candidates once they see enough traffic, and are
// promoted to canon when a remaster job regenerates their content through
// the full pipeline. CanonJob rows track that remaster work; TopicRequest
// rows are the append-only evidence the aggregates are derived from.
//
// This package holds only types, status enums, key normalization, and the
// threshold configuration. All persistence lives in internal/store and all
// transition rules in internal/lifecycle.
package canon
