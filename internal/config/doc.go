// Package config loads, normalizes, and validates mangameta configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MANGAMETA_COOKIE, which may also come from a .env file. The Config type
// centralizes every knob the CLI and pipeline need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
