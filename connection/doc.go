// Package connection manages the lifecycle of one backend MCP server.
//
// A Connection moves through an explicit state machine:
//
//	Disconnected -> Connecting -> Connected -> Degraded -> Connected | Disconnected
//
// Streaming transports (sse, custom-http-sse) are checked before every call; a dead
// client moves the connection to Degraded and the single reconnection routine replaces
// the client and refreshes the catalog. Concurrent callers share that one attempt.
package connection
