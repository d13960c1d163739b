// Package config loads and validates the tool's YAML configuration and
// can watch the config file for changes at runtime.
package config
