// Package sweep implements the periodic promotion pass over the topic
// pool.
package sweep
