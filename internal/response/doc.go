// Package response writes the gateway's JSON bodies and error envelopes.
package response
