package config

import "errors"

var (
	// ErrNoOutput is returned when the CSV output path is empty.
	ErrNoOutput = errors.New("output path must not be empty")

	// ErrInvalidConcurrency is returned when concurrency is not positive.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

	// ErrInvalidTimeout is returned when a timeout is negative.
	ErrInvalidTimeout = errors.New("timeout must not be negative")

	// ErrInvalidMaxBodySize is returned when the body size cap is negative.
	ErrInvalidMaxBodySize = errors.New("max body size must not be negative")

	// ErrConflictingTLSOptions is returned when a CA bundle and --insecure are combined.
	ErrConflictingTLSOptions = errors.New("ca-file and insecure are mutually exclusive")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
