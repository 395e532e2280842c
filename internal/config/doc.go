// Package config loads, normalizes, and validates takevault's TOML
// configuration.
package config
