// Package config loads, normalizes, and validates Captionizer configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and HF_TOKEN. The Config type centralizes every knob the
// workflows and CLI need so directories, segmentation parameters, and service
// credentials are discovered in one pass.
package config
