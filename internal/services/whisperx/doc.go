// Package whisperx runs WhisperX through uvx as the speech recognition
// capability.
//
// Service.Recognize transcribes one audio file (a whole recording or a
// single speech clip) and returns the full text plus timed sub-segments in
// seconds relative to that file. Model, device, and VAD settings come from
// Config.
package whisperx
