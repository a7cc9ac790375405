package server

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/viant/jsonrpc"
	protoschema "github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-proxy/schema"
	"github.com/viant/mcp-proxy/transport"
)

// Adapter adapts a server Handler to implement transport.Client, so one proxy can be
// registered as a backend of another without a network hop
type Adapter struct {
	handler *Handler
	closed  atomic.Bool
}

// Kind returns transport kind; the adapter behaves like a unary client
func (a *Adapter) Kind() transport.Kind {
	return transport.KindHTTP
}

// Initialize performs the handshake followed by the initialized notification
func (a *Adapter) Initialize(ctx context.Context) error {
	params := &protoschema.InitializeRequestParams{
		ProtocolVersion: schema.ProtocolVersion,
		ClientInfo:      protoschema.Implementation{Name: "mcp-proxy-adapter", Version: "1.0.0"},
	}
	if _, err := a.call(ctx, schema.MethodInitialize, params); err != nil {
		return err
	}
	a.handler.OnNotification(ctx, &jsonrpc.Notification{Method: schema.MethodNotificationInitialized})
	return nil
}

// ListTools lists the aggregated tools
func (a *Adapter) ListTools(ctx context.Context) ([]*schema.Tool, error) {
	data, err := a.call(ctx, schema.MethodToolsList, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	result := &schema.ListToolsResult{}
	if err = json.Unmarshal(data, result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// ListResources lists the aggregated resources
func (a *Adapter) ListResources(ctx context.Context) ([]*schema.Resource, error) {
	data, err := a.call(ctx, schema.MethodResourcesList, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	result := &schema.ListResourcesResult{}
	if err = json.Unmarshal(data, result); err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// CallTool calls a tool by its exposed name
func (a *Adapter) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error) {
	return a.call(ctx, schema.MethodToolsCall, &schema.CallToolRequestParams{Name: name, Arguments: arguments})
}

// ReadResource reads a resource by its uri
func (a *Adapter) ReadResource(ctx context.Context, uri string) (json.RawMessage, error) {
	return a.call(ctx, schema.MethodResourcesRead, &schema.ReadResourceRequestParams{URI: uri})
}

// IsAlive returns true until closed
func (a *Adapter) IsAlive() bool {
	return !a.closed.Load()
}

// Close closes the underlying handler
func (a *Adapter) Close() error {
	if a.closed.CompareAndSwap(false, true) {
		a.handler.Close()
	}
	return nil
}

func (a *Adapter) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if a.closed.Load() {
		return nil, transport.ErrClosed
	}
	request, err := jsonrpc.NewRequest(method, params)
	if err != nil {
		return nil, err
	}
	request.Jsonrpc = jsonrpc.Version
	response := &jsonrpc.Response{}
	a.handler.Serve(ctx, request, response)
	a.handler.observeRequest(method, response.Error)
	if response.Error != nil {
		return nil, response.Error
	}
	return response.Result, nil
}

// NewAdapter creates an in-process client with its own uninitialized dispatcher
func NewAdapter(server *Server) *Adapter {
	return &Adapter{handler: server.NewHandler(Uninitialized)}
}

var _ transport.Client = (*Adapter)(nil)
