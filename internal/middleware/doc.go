// Package middleware provides the HTTP middleware wrapped around the gateway
// routes: CORS, request ids, access logging and panic recovery.
package middleware
