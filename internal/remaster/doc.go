// Package remaster runs the canonical episode pipeline: claim a queued
// job, generate a transcript, synthesize audio, commit the promotion.
package remaster
