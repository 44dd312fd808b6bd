// Package workflow wires the convert, transcribe, and translate units into
// running batches.
//
// A Manager owns one pipeline.Supervisor per workflow. Starting a batch runs
// the preflight checks for that workflow, takes a per-workflow file lock so a
// second captionizer process cannot process the same workflow concurrently,
// records the batch in the history store, and fans supervisor events out to
// history, ntfy notifications, and the caller.
//
// The three workflows run independently: a convert batch and a translate
// batch may be in flight at the same time, but each workflow processes one
// batch (and one job) at a time.
package workflow
