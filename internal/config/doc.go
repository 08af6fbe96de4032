// Package config loads the immutable collector configuration from the
// environment and an optional YAML file, once, at startup.
package config
