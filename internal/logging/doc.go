// Package logging provides slog-based loggers with console and JSON output
// plus the standardized field names used across the pipeline.
package logging
