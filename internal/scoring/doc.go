// Package scoring holds the pure promotion policy: the composite canon
// score and the threshold evaluation. No I/O, deterministic, total.
package scoring
