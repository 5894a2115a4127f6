// Package config loads, normalizes, and validates purpleify configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the PURPLEIFY_ENDPOINT environment
// fallback. The Config type centralizes every knob the CLI needs: where the
// correlation store lives, how the frame decoder buffers and bounds incoming
// streams, and which transform endpoint receives documents.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
