// Package healthcheck probes the upstream Oracle table for connectivity.
// It answers the on-demand /health check and can also run periodically in the
// background, logging state transitions and feeding the metrics collector.
package healthcheck
