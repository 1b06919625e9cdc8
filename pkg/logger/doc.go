// Package logger builds the gateway's structured logger on top of log/slog:
// JSON output in production, text elsewhere, tagged with service and
// environment.
package logger
