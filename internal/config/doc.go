// Package config loads, normalizes, and validates autorip configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// NTFY_TOPIC and AUTORIP_MODE. Always obtain settings through this package so
// downstream code receives absolute paths, a known processing mode, and clear
// validation errors.
package config
