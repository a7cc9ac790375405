package server

import (
	"net/http"

	"github.com/viant/mcp-proxy/schema"
)

const versionHeader = "mcp-version"

// protocolVersionMiddleware echoes the client's mcp-version header, defaulting to the supported revision
func protocolVersionMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			version := r.Header.Get(versionHeader)
			if version == "" {
				version = schema.ProtocolVersion
			}
			w.Header().Set(versionHeader, version)
			next.ServeHTTP(w, r)
		})
	}
}
