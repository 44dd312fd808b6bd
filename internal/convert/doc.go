// Package convert implements the conversion unit: it imports one media file
// as a canonical PCM WAV.
//
// Audio containers are re-encoded with no granular progress signal, so the
// unit marks its progress as estimated and lets the supervisor synthesize it.
// Video containers have their first audio track extracted with progress
// measured from ffmpeg's reported output time. A source that is already WAV
// is passed through untouched.
package convert
