package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-proxy/schema"
)

// ListResources handles the resources/list method
func (h *Handler) ListResources(ctx context.Context, request *jsonrpc.Request) (*schema.ListResourcesResult, *jsonrpc.Error) {
	return &schema.ListResourcesResult{Resources: h.router.ListResources()}, nil
}

// ReadResource handles the resources/read method
func (h *Handler) ReadResource(ctx context.Context, request *jsonrpc.Request) (json.RawMessage, *jsonrpc.Error) {
	params := &schema.ReadResourceRequestParams{}
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, params); err != nil {
			return nil, jsonrpc.NewInvalidParamsError(fmt.Sprintf("failed to parse: %v", err), request.Params)
		}
	}
	if params.URI == "" {
		return nil, schema.NewMissingParameter("uri", schema.MethodResourcesRead)
	}
	result, err := h.router.ReadResource(ctx, params.URI)
	if err != nil {
		h.logger.Warn("resource read failed", "uri", params.URI, "error", err)
		return nil, h.asRPCError(err, params.URI)
	}
	return result, nil
}
