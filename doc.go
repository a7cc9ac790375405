// Package mcpproxy provides high-level constructors for the MCP proxy.
//
// The proxy connects to many backend MCP servers (stdio, http, sse and custom
// http+sse endpoints), merges their tools and resources into one namespace and
// serves it over a single HTTP endpoint. Two entry points are exposed:
//  1. NewServer – returns a configured proxy server for a list of backends and
//  2. NewClient – returns a connected client for one backend.
//
// Both constructors accept option structures that can be populated from CLI flags
// or the YAML configuration file.
//
// Example:
//
//	srv, _ := mcpproxy.NewServer(&mcpproxy.ServerOptions{Servers: servers}, logger)
//	_ = srv.Start(ctx)
//	log.Fatal(srv.HTTP(ctx, "").ListenAndServe())
package mcpproxy
