// Package lifecycle coordinates the topic status machine: cold topics
// entering the candidate pool, candidates promoting to canon through
// remaster jobs, and administrative demotions unwinding promotions.
package lifecycle
