// Package fetch executes a fetch plan: a bounded pool of workers issuing
// idempotent byte-range requests, one per field slice.
//
// # Resumability
//
// The destination tree doubles as the recovery journal. A destination file
// whose size matches the declared byte length is a finished task and is
// skipped; anything else is deleted and re-fetched. In-flight slices live
// in .part files and are renamed into place only when complete, so no
// crash can leave a destination that passes the size check without holding
// the full slice.
//
// # Failure containment
//
// Every task reaches one of three terminal states: fetched, skipped or
// failed. A failed task deletes its partial output and is reported in the
// results; it never stops the pool.
package fetch
