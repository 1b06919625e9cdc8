// Package httpserver runs the gateway's listener with bounded timeouts and
// graceful shutdown.
package httpserver
