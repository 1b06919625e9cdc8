package upstream

import (
	"fmt"
	"net/http"
)

// Kind classifies why a forwarded call failed.
type Kind int

const (
	KindNotFound    Kind = iota + 1 // upstream answered 404
	KindUpstream                    // upstream answered another non-2xx status
	KindTimeout                     // call exceeded the timeout
	KindUnavailable                 // upstream could not be reached
	KindInternal                    // any other transport or decoding fault
)

const (
	MsgNotFound    = "Record not found"
	MsgTimeout     = "Oracle database timeout"
	MsgUnavailable = "Cannot connect to Oracle database"
	MsgInternal    = "Internal server error"
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the failure returned by Client.Forward. StatusCode and Message are
// what the caller should render; Cause, when set, is the underlying fault.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

// Error renders as "<status>: <message>". The cause is only reachable
// through Unwrap so it never leaks into client-facing text.
func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func notFound() *Error {
	return &Error{Kind: KindNotFound, StatusCode: http.StatusNotFound, Message: MsgNotFound}
}

func timeout(cause error) *Error {
	return &Error{Kind: KindTimeout, StatusCode: http.StatusGatewayTimeout, Message: MsgTimeout, Cause: cause}
}

func unavailable(cause error) *Error {
	return &Error{Kind: KindUnavailable, StatusCode: http.StatusServiceUnavailable, Message: MsgUnavailable, Cause: cause}
}

func internal(cause error) *Error {
	return &Error{Kind: KindInternal, StatusCode: http.StatusInternalServerError, Message: MsgInternal, Cause: cause}
}
