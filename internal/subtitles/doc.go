// Package subtitles formats and reads SubRip (.srt) files.
//
// It renders captions as numbered cues with HH:MM:SS,mmm timings and provides
// a line classifier that tells index, timing, and text lines apart so a
// translator can rewrite only the caption text.
package subtitles
