// Package timesource looks up the current time from an external time service.
// The gateway stamps health and summary responses with it.
package timesource
