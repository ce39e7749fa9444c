// Package config loads, normalizes, and validates the TOML configuration for
// clipsplit. Defaults live in defaults.go so the tool runs with an empty
// config file; validation rejects values the pipeline cannot operate with.
package config
