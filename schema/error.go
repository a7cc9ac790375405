package schema

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/viant/jsonrpc"
)

const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
	// ServerNotInitialized is returned for operations attempted before the initialize handshake
	ServerNotInitialized = -32002
)

// NewServerNotInitialized creates a server not initialized error
func NewServerNotInitialized(method string) *jsonrpc.Error {
	data, _ := json.Marshal(map[string]string{"method": method})
	return &jsonrpc.Error{Code: ServerNotInitialized, Message: "Server not initialized", Data: data}
}

// NewToolNotFound creates a tool not found error
func NewToolNotFound(name string) *jsonrpc.Error {
	return &jsonrpc.Error{Code: InvalidParams, Message: "Tool not found: " + name}
}

// NewResourceNotFound creates a resource not found error
func NewResourceNotFound(uri string) *jsonrpc.Error {
	data, _ := json.Marshal(map[string]string{"uri": uri})
	return &jsonrpc.Error{Code: InvalidParams, Message: "Resource not found: " + uri, Data: data}
}

// NewMissingParameter creates an invalid params error for a required field
func NewMissingParameter(name, method string) *jsonrpc.Error {
	return jsonrpc.NewInvalidParamsError("Missing '"+name+"' parameter for "+method, nil)
}

// IsToolNotFound reports whether a backend rejected a call because it does not know the tool.
// Backends disagree on the code (invalid params, method not found), so the message is checked as well;
// other "not found" messages (files, records) are tool errors, not missing tools.
func IsToolNotFound(err error) bool {
	var rpcErr *jsonrpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	if rpcErr.Code == MethodNotFound {
		return true
	}
	message := strings.ToLower(rpcErr.Message)
	return strings.Contains(message, "tool not found") || strings.Contains(message, "unknown tool")
}

// IsMethodNotFound reports whether err is a JSON-RPC method not found error
func IsMethodNotFound(err error) bool {
	var rpcErr *jsonrpc.Error
	return errors.As(err, &rpcErr) && rpcErr.Code == MethodNotFound
}
