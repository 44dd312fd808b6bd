// Package language maps user-facing language names to the codes handed to the
// recognition and translation backends.
//
// The table covers the languages offered for translation plus the common ISO
// 639-2 aliases; anything else must parse as a BCP 47 tag.
package language
