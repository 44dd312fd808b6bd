// Package translate implements the translation unit for .txt transcripts and
// .srt subtitle files.
//
// Files are processed line by line. Plain text sends every non-blank line to
// the Translator; subtitle files only send caption text, leaving index and
// timecode lines untouched. Lines are split and rejoined on "\n" so an
// identity translation reproduces the source byte for byte.
package translate
