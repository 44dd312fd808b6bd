// Package services defines shared utilities consumed by the workflow units and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, workflow names, job positions, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify which maps a
//     failure onto the job taxonomy (skip, halt, cancelled, unexpected).
//
// Subpackages wrap the external tools (ffmpeg, whisperx, an LLM endpoint) as
// injectable capabilities so unit logic can be tested with fakes.
package services
