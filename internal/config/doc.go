// Package config loads, normalizes, and validates jobscout's TOML
// configuration. Defaults live in defaults.go; normalization (path expansion,
// trimming, environment fallbacks) and validation run as separate passes so
// callers always receive a fully resolved config or a descriptive error.
package config
