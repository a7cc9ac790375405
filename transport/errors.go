package transport

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout is returned when a call does not receive a response in time
	ErrTimeout = errors.New("mcp request timed out")
	// ErrClosed is returned for calls issued or pending when the client is closed
	ErrClosed = errors.New("mcp client closed")
	// ErrNoEndpoint is returned when an SSE server never announces its message endpoint
	ErrNoEndpoint = errors.New("message endpoint not set by server - no 'endpoint' event received")
	// ErrProcessExited is returned for calls pending when a stdio server exits
	ErrProcessExited = errors.New("mcp server process exited")
	// ErrStreamClosed is returned for calls pending when an SSE stream ends
	ErrStreamClosed = errors.New("mcp event stream closed")
)

// SecurityError is returned when a stdio command is not on the allowlist
type SecurityError struct {
	Command string
	Base    string
	Allowed []string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security violation: command '%v' (%v) is not in the allowed commands list: [%v]",
		e.Command, e.Base, strings.Join(e.Allowed, ", "))
}

// UnsupportedEndpointError is returned for endpoints with an unknown scheme
type UnsupportedEndpointError struct {
	Endpoint string
}

func (e *UnsupportedEndpointError) Error() string {
	return fmt.Sprintf("unsupported endpoint: %v, expected stdio://, http(s)://, sse(s):// or custom-http(s)-sse://", e.Endpoint)
}

// HTTPStatusError is returned when a backend answers with an unexpected status code
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d from %v", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("unexpected status %d from %v: %v", e.StatusCode, e.URL, e.Body)
}
