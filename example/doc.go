// Package example contains runnable snippets that demonstrate how to put the
// proxy in front of backend MCP servers.
//
// The examples are executed by `go test` against in-process backends.
package example
