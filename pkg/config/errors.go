package config

import "errors"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrMalformedConfig is returned when the configuration file cannot be
	// parsed or contains invalid values.
	ErrMalformedConfig = errors.New("malformed configuration")

	// ErrMissingField is returned when a required configuration field is empty.
	ErrMissingField = errors.New("missing required configuration field")
)
