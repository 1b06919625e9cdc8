// Package upstream forwards gateway requests to the Oracle REST table and
// normalizes what comes back.
//
// Successful responses are relayed as JSON. Every failure, whether the
// upstream answered with an error status or the call never completed, is
// returned as an *Error carrying a Kind, the status code to report and a
// client-facing message. Callers switch on the Kind with errors.As.
//
// An optional circuit breaker (sony/gobreaker) fails calls fast once the
// upstream keeps failing at the transport level. It never retries.
package upstream
