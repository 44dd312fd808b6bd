// Package main hosts the Captionizer CLI entrypoint and command graph.
//
// The Cobra-based command tree starts convert, transcribe, and translate
// batches through the workflow manager, renders their progress as a bar on a
// terminal or as plain lines otherwise, and exposes batch history, readiness
// checks, temp cleanup, and configuration scaffolding.
//
// Interrupting a running command (Ctrl-C) cancels every batch it started. The
// in-flight job stops at its next checkpoint and the remaining files are
// reported as cancelled. The process exits non-zero when any file was skipped,
// a batch halted, or the run was cancelled.
package main
