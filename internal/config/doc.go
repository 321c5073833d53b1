// Package config loads and validates the bot configuration. Tunables
// come from an optional YAML file; secrets and identifiers come from the
// environment and always win over the file.
package config
