// Package transport implements MCP clients for the backend servers aggregated by the proxy.
//
// Four variants share one capability interface (Client):
//   - Stdio: spawned process speaking newline delimited JSON-RPC on stdin/stdout
//   - HTTP: one POST per call, response read from the body
//   - SSE: GET event stream, POST endpoint announced by the server with an "endpoint" event
//   - CustomSSE: GET base/sse event stream, POST to the fixed base/message path
//
// Streaming variants correlate responses with a Correlator: a single reader goroutine
// delivers raw frames and one correlation goroutine owns the pending call table.
//
// The variant is selected from the endpoint scheme:
//
//	client, err := transport.New(ctx, "stdio://python3 server.py", transport.WithName("calc"))
package transport
