package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	protoschema "github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-proxy/schema"
)

// caller carries JSON-RPC requests and notifications to a backend
type caller interface {
	Call(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error)
	Notify(ctx context.Context, method string, params interface{}) error
}

// protocol implements MCP operations on top of a caller
type protocol struct {
	caller  caller
	options *Options
	logger  *slog.Logger
}

// Initialize performs the initialize handshake followed by the initialized notification
func (p *protocol) Initialize(ctx context.Context) error {
	params := &protoschema.InitializeRequestParams{
		ProtocolVersion: schema.ProtocolVersion,
		ClientInfo:      p.options.ClientInfo,
	}
	result, err := p.caller.Call(ctx, schema.MethodInitialize, params, p.options.MetadataTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	info := &schema.InitializeResult{}
	if len(result) > 0 {
		if err = json.Unmarshal(result, info); err != nil {
			return fmt.Errorf("failed to decode initialize result: %w", err)
		}
	}
	p.logger.Debug("initialized", "serverName", info.ServerInfo.Name, "protocolVersion", info.ProtocolVersion)
	notifyCtx, cancel := context.WithTimeout(ctx, p.options.MetadataTimeout)
	defer cancel()
	if err = p.caller.Notify(notifyCtx, schema.MethodNotificationInitialized, nil); err != nil {
		p.logger.Warn("failed to send initialized notification", "error", err)
	}
	return nil
}

// ListTools returns backend tools; a timeout or unsupported method yields an empty catalog
func (p *protocol) ListTools(ctx context.Context) ([]*schema.Tool, error) {
	result, err := p.caller.Call(ctx, schema.MethodToolsList, map[string]interface{}{}, p.options.MetadataTimeout)
	if err != nil {
		if isEmptyCatalog(err) {
			p.logger.Warn("tools discovery returned no catalog", "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	output := &schema.ListToolsResult{}
	if len(result) > 0 {
		if err = json.Unmarshal(result, output); err != nil {
			return nil, fmt.Errorf("failed to decode tools: %w", err)
		}
	}
	return output.Tools, nil
}

// ListResources returns backend resources; a timeout or unsupported method yields an empty catalog
func (p *protocol) ListResources(ctx context.Context) ([]*schema.Resource, error) {
	result, err := p.caller.Call(ctx, schema.MethodResourcesList, map[string]interface{}{}, p.options.MetadataTimeout)
	if err != nil {
		if isEmptyCatalog(err) {
			p.logger.Warn("resources discovery returned no catalog", "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	output := &schema.ListResourcesResult{}
	if len(result) > 0 {
		if err = json.Unmarshal(result, output); err != nil {
			return nil, fmt.Errorf("failed to decode resources: %w", err)
		}
	}
	return output.Resources, nil
}

// CallTool invokes a backend tool, the raw result is returned untouched
func (p *protocol) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error) {
	params := &schema.CallToolRequestParams{Name: name, Arguments: arguments}
	return p.caller.Call(ctx, schema.MethodToolsCall, params, p.options.CallTimeout)
}

// ReadResource reads a backend resource, the raw result is returned untouched
func (p *protocol) ReadResource(ctx context.Context, uri string) (json.RawMessage, error) {
	params := &schema.ReadResourceRequestParams{URI: uri}
	return p.caller.Call(ctx, schema.MethodResourcesRead, params, p.options.CallTimeout)
}

func isEmptyCatalog(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	return schema.IsMethodNotFound(err)
}

func newProtocol(caller caller, options *Options) *protocol {
	return &protocol{caller: caller, options: options, logger: options.Logger}
}
