// Package llm provides an OpenRouter-compatible chat client used as the
// machine translation capability.
//
// Client.Translate sends one piece of text with a prompt that asks for a
// {"translation": ...} JSON object and returns the decoded text. HealthCheck
// is used by preflight checks to validate the key and model.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, network failures, and empty
// completions with exponential backoff (base 1s, max 10s, 4 attempts by
// default). Context cancellation aborts retries immediately. Failures that
// survive the retry budget and look like connectivity problems are tagged
// services.ErrTransient so the translate workflow halts its batch.
package llm
