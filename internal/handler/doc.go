// Package handler implements the gateway's HTTP routes: record CRUD relayed to
// the upstream table, the dashboard summary and the health check.
// Upstream failures are rendered as {"error", "status_code"} envelopes;
// anything unanticipated as {"error": "Internal server error", "details"}.
package handler
