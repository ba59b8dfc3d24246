// Package config loads, validates, and exposes the TOML configuration for
// the listing pipeline, including the per-platform and per-account settings
// consumed by the scheduler, daemons, and supervisor.
package config
