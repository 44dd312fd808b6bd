// Package segment splits a mono waveform into speech-bearing clips by
// short-time energy, so each clip can be recognised on its own and its
// captions placed back on the source timeline.
package segment
