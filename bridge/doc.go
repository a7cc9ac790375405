// Package bridge runs the MCP proxy as a command line service.
//
// Options come from flags, MCP_PROXY_* environment variables and an optional YAML
// config file; flags and environment win over the file. Run blocks until the
// context is cancelled or SIGINT/SIGTERM arrives, then shuts down gracefully.
package bridge
