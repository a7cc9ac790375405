// Package server exposes the aggregated catalog of a router as one MCP endpoint.
//
// A single base path serves:
//   - JSON-RPC request/response (POST, Accept: application/json)
//   - SSE sessions (GET, Accept: text/event-stream) answered on the event stream
//   - legacy /sse, /message, /tools and /resources routes
//   - /health and Prometheus /metrics
//
// Every SSE session owns its own dispatcher and must complete initialize before
// calling tools or resources; plain JSON requests are served without a handshake.
//
//	s, _ := server.New(r, server.WithBasePath("/mcp/v1"))
//	log.Fatal(s.HTTP(ctx, ":5000").ListenAndServe())
package server
