// Package logging assembles structured slog loggers and formatting helpers used
// across Captionizer.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing (including per-workflow level overrides), and exposes context-aware
// helpers so supervisor and unit code can tag log lines with batch IDs,
// workflow names, and job positions. The package also provides a no-op logger
// for tests and a sampler that keeps progress logging readable.
package logging
