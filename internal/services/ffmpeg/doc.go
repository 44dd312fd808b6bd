// Package ffmpeg wraps the ffmpeg binary for the audio work the pipeline
// needs: decoding any supported container to mono float PCM, writing PCM
// clips back out as 16-bit WAV, and converting a source file to the
// canonical WAV format with measured progress.
//
// All invocations go through an Executor so tests can script ffmpeg's
// stdout without the binary being installed.
package ffmpeg
