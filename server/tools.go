package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-proxy/schema"
)

// ListTools handles the tools/list method
func (h *Handler) ListTools(ctx context.Context, request *jsonrpc.Request) (*schema.ListToolsResult, *jsonrpc.Error) {
	return &schema.ListToolsResult{Tools: h.router.ListTools()}, nil
}

// CallTool handles the tools/call method
func (h *Handler) CallTool(ctx context.Context, request *jsonrpc.Request) (json.RawMessage, *jsonrpc.Error) {
	params := &schema.CallToolRequestParams{}
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, params); err != nil {
			return nil, jsonrpc.NewInvalidParamsError(fmt.Sprintf("failed to parse: %v", err), request.Params)
		}
	}
	if params.Name == "" {
		return nil, schema.NewMissingParameter("name", schema.MethodToolsCall)
	}
	result, err := h.router.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		h.logger.Warn("tool call failed", "tool", params.Name, "error", err)
		return nil, h.asRPCError(err, params.Name)
	}
	return result, nil
}
