package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/viant/jsonrpc"
	protoschema "github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-proxy/internal/collection"
	"github.com/viant/mcp-proxy/router"
	"github.com/viant/mcp-proxy/schema"
)

// State represents dispatcher protocol state
type State int32

const (
	Uninitialized State = iota
	Initialized
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Closed:
		return "closed"
	}
	return "unknown"
}

type (
	// envelope is an inbound JSON-RPC message; the id is kept raw so it is echoed untouched
	envelope struct {
		Jsonrpc string          `json:"jsonrpc"`
		Id      json.RawMessage `json:"id,omitempty"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	reply struct {
		Jsonrpc string          `json:"jsonrpc"`
		Id      json.RawMessage `json:"id"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *jsonrpc.Error  `json:"error,omitempty"`
	}

	// Handler dispatches MCP methods of one downstream client
	Handler struct {
		*Server
		state            atomic.Int32
		mux              sync.RWMutex
		clientInitialize *protoschema.InitializeRequestParams
		activeContexts   *collection.SyncMap[string, *activeContext]
		logger           *slog.Logger
	}
)

func (e *envelope) isNotification() bool {
	return len(e.Id) == 0 || string(e.Id) == "null"
}

// State returns protocol state
func (h *Handler) State() State {
	return State(h.state.Load())
}

// ClientInfo returns the identity announced by the client in initialize
func (h *Handler) ClientInfo() *protoschema.Implementation {
	h.mux.RLock()
	defer h.mux.RUnlock()
	if h.clientInitialize == nil {
		return nil
	}
	return &h.clientInitialize.ClientInfo
}

// Handle processes one raw JSON-RPC message and returns the encoded response, nil for notifications
func (h *Handler) Handle(ctx context.Context, data []byte) []byte {
	message := &envelope{}
	if err := json.Unmarshal(data, message); err != nil {
		return h.encode(nil, nil, jsonrpc.NewParsingError("Parse error: "+err.Error(), nil))
	}
	if message.Jsonrpc != jsonrpc.Version || message.Method == "" {
		return h.encode(message.Id, nil, jsonrpc.NewInvalidRequest(`Invalid Request: jsonrpc must be "2.0" and method is required`, nil))
	}
	if message.isNotification() {
		h.OnNotification(ctx, &jsonrpc.Notification{Method: message.Method, Params: message.Params})
		return nil
	}
	ctx, done := h.track(ctx, message.Id)
	defer done()
	request := &jsonrpc.Request{Jsonrpc: message.Jsonrpc, Method: message.Method, Params: message.Params}
	response := &jsonrpc.Response{}
	h.Serve(ctx, request, response)
	h.observeRequest(message.Method, response.Error)
	return h.encode(message.Id, response.Result, response.Error)
}

// Serve handles incoming JSON-RPC requests
func (h *Handler) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	if jsonrpc.Version != request.Jsonrpc {
		response.Error = jsonrpc.NewInvalidRequest("invalid JSON-RPC version", nil)
		return
	}
	switch h.State() {
	case Closed:
		response.Error = jsonrpc.NewInternalError("session closed", nil)
		return
	case Uninitialized:
		switch request.Method {
		case schema.MethodToolsList, schema.MethodToolsCall, schema.MethodResourcesList, schema.MethodResourcesRead:
			response.Error = schema.NewServerNotInitialized(request.Method)
			return
		}
	}
	switch request.Method {
	case schema.MethodInitialize:
		result, err := h.Initialize(ctx, request)
		h.setResponse(response, result, err)
	case schema.MethodToolsList:
		result, err := h.ListTools(ctx, request)
		h.setResponse(response, result, err)
	case schema.MethodToolsCall:
		result, err := h.CallTool(ctx, request)
		h.setResponse(response, result, err)
	case schema.MethodResourcesList:
		result, err := h.ListResources(ctx, request)
		h.setResponse(response, result, err)
	case schema.MethodResourcesRead:
		result, err := h.ReadResource(ctx, request)
		h.setResponse(response, result, err)
	default:
		response.Error = jsonrpc.NewMethodNotFound(fmt.Sprintf("Method not found: %v", request.Method), nil)
	}
}

func (h *Handler) setResponse(response *jsonrpc.Response, result interface{}, rpcError *jsonrpc.Error) {
	if rpcError != nil {
		response.Error = rpcError
		return
	}
	var err error
	response.Result, err = json.Marshal(result)
	if err != nil {
		response.Error = jsonrpc.NewInternalError(err.Error(), nil)
	}
}

// OnNotification handles incoming JSON-RPC notifications
func (h *Handler) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {
	switch notification.Method {
	case schema.MethodNotificationInitialized, schema.MethodInitialized:
		h.logger.Debug("client initialized", "method", notification.Method)
	case schema.MethodNotificationCancelled:
		if err := h.Cancel(ctx, notification); err != nil {
			h.logger.Debug("invalid cancellation", "error", err)
		}
	default:
		h.logger.Debug("ignoring notification", "method", notification.Method)
	}
}

// Close cancels in-flight operations; later requests fail
func (h *Handler) Close() {
	if State(h.state.Swap(int32(Closed))) == Closed {
		return
	}
	h.cancelAll()
}

// asRPCError maps router and backend failures onto wire errors
func (h *Handler) asRPCError(err error, name string) *jsonrpc.Error {
	switch {
	case errors.Is(err, router.ErrToolNotFound):
		return schema.NewToolNotFound(name)
	case errors.Is(err, router.ErrResourceNotFound):
		return schema.NewResourceNotFound(name)
	}
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return jsonrpc.NewInternalError(err.Error(), nil)
}

func (h *Handler) encode(id json.RawMessage, result json.RawMessage, rpcError *jsonrpc.Error) []byte {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	message := &reply{Jsonrpc: jsonrpc.Version, Id: id, Error: rpcError}
	if rpcError == nil {
		message.Result = result
		if len(message.Result) == 0 {
			message.Result = json.RawMessage("{}")
		}
	}
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to encode response", "error", err)
		data, _ = json.Marshal(&reply{Jsonrpc: jsonrpc.Version, Id: id, Error: jsonrpc.NewInternalError(err.Error(), nil)})
	}
	return data
}

func (h *Handler) observeRequest(method string, rpcError *jsonrpc.Error) {
	if h.metrics == nil {
		return
	}
	h.metrics.ObserveRequest(method, rpcError)
}
