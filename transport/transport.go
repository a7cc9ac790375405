package transport

import (
	"context"
	"encoding/json"

	"github.com/viant/mcp-proxy/schema"
)

// Client represents an MCP connection to one backend server
type Client interface {
	Kind() Kind
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]*schema.Tool, error)
	ListResources(ctx context.Context) ([]*schema.Resource, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error)
	ReadResource(ctx context.Context, uri string) (json.RawMessage, error)
	IsAlive() bool
	Close() error
}

// Factory creates a client for an endpoint
type Factory func(ctx context.Context, endpoint string, options ...Option) (Client, error)

// New creates a client selected by the endpoint scheme
func New(ctx context.Context, endpoint string, options ...Option) (Client, error) {
	parsed, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	var client Client
	switch parsed.Kind {
	case KindStdio:
		client, err = NewStdio(parsed.Command, parsed.Args, options...)
	case KindHTTP:
		client = NewHTTP(parsed.URL, options...)
	case KindSSE:
		client, err = NewSSE(ctx, parsed.URL, options...)
	case KindCustomSSE:
		client, err = NewCustomSSE(ctx, parsed.URL, options...)
	default:
		return nil, &UnsupportedEndpointError{Endpoint: endpoint}
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

var (
	_ Client = (*Stdio)(nil)
	_ Client = (*HTTP)(nil)
	_ Client = (*SSE)(nil)
	_ Client = (*CustomSSE)(nil)
)
