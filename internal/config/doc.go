// Package config loads, normalizes, and validates governor configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and maps mode names to energy profiles. The
// Config type centralizes every knob the daemon and CLI need: polling cadence,
// debounce depth, process filters, external tool argv, and the per-mode
// profile table.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical mode keys, and clear validation errors.
package config
