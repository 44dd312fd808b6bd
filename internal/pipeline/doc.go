// Package pipeline is the job engine shared by the convert, transcribe, and
// translate workflows.
//
// A Supervisor pulls jobs from a bounded FIFO JobQueue one at a time, builds a
// Unit for each, runs it on a worker goroutine, and polls it on a fixed tick.
// Polling drives aggregate progress, cooperative cancellation, and the
// per-job outcome accounting reported through Events. Units embed a Tracker,
// which owns their State and enforces that progress never falls and that a
// terminal state is final.
//
// Units that cannot measure their own progress report Estimated progress; the
// supervisor fills the gap with a Synthesizer that creeps toward 99% until
// the unit completes.
package pipeline
