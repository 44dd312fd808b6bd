// Package logs reads Captionizer's log files for the CLI.
//
// Last returns the final lines of a file with bounded memory, and Follow
// streams lines appended after an offset until its context ends. Both are
// used by `captionizer logs` for the application log and the daily run logs.
package logs
