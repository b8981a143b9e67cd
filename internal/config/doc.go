// Package config loads the ochim run configuration from YAML or TOML,
// applies defaults for every omitted key and validates the result.
package config
