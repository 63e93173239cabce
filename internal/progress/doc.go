// Package progress prints human-readable fetch progress to stderr.
//
// The reporter is fed by fetch workers through atomic counters and
// refreshed by a single ticker goroutine, so reporting never serializes
// the workers.
package progress
