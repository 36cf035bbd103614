// Package config loads, normalizes, and validates coordinator configuration.
//
// It supplies defaults, reads an optional TOML file, honours the
// RACINGPLUS_DEV environment toggle, and resolves every worker and data path
// for the launch mode: development paths are relative to the source tree,
// production paths are relative to the installed executable.
//
// Always obtain settings through this package so downstream code receives
// absolute paths and clear validation errors.
package config
