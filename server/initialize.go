package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/jsonrpc"
	protoschema "github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-proxy/schema"
)

// Initialize handles the initialize method
func (h *Handler) Initialize(ctx context.Context, request *jsonrpc.Request) (*schema.InitializeResult, *jsonrpc.Error) {
	params := &protoschema.InitializeRequestParams{}
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, params); err != nil {
			return nil, jsonrpc.NewInvalidParamsError(fmt.Sprintf("failed to parse %v", err), request.Params)
		}
	}
	if params.ProtocolVersion == "" {
		return nil, schema.NewMissingParameter("protocolVersion", schema.MethodInitialize)
	}
	h.mux.Lock()
	h.clientInitialize = params
	h.mux.Unlock()
	h.state.CompareAndSwap(int32(Uninitialized), int32(Initialized))
	h.logger.Info("client initialized", "client", params.ClientInfo.Name, "clientVersion", params.ClientInfo.Version, "protocolVersion", params.ProtocolVersion)
	return schema.NewInitializeResult(h.info), nil
}
