// Package notifications delivers batch events via ntfy.
//
// The ntfy implementation posts one message per skipped job and one summary
// per finished batch, each switchable in config.toml, and degrades to a no-op
// when no topic is configured. Workflow code depends only on the Service
// interface.
package notifications
