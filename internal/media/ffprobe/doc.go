// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Prober: runs ffprobe through an injectable Runner
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//
// Helper methods on Result answer the questions the conversion workflow asks:
// whether a container has audio at all, whether it is already PCM WAV, and
// how long it runs.
package ffprobe
