// Package transcribe implements the transcription unit.
//
// In segmented mode the source is decoded to mono PCM, split into speech
// clips by the segment package, and each clip is recognized in order. Clip
// sub-segments reported by the recognizer are placed back on the source
// timeline and clamped to the clip they came from. Full mode hands the whole
// file to the recognizer in one call.
//
// A run writes {stem}.txt and {stem}.srt to the output directory and appends
// a "Speech Recognition" block to the run log. Cancellation is observed
// between clips and leaves no output behind.
package transcribe
