// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the gateway configuration: listen
// address and timeouts, the upstream Oracle collection URL, the time service,
// CORS policy, logging and metrics settings.
package config
