// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, the upstream pool, probe tuning, cache TTL, and
// the latency scoring constants. Invalid configuration fails loading, so a
// service that starts is a service that was configured correctly.
package config
