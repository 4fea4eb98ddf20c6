// Package generation talks to the external LLM service that writes
// lesson transcripts.
package generation
