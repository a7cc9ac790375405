package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-proxy/router"
	"github.com/viant/mcp-proxy/schema"
)

const (
	maxBodySize       = 16 * 1024 * 1024
	transportProtocol = "streamable-http"
	capabilities      = "tools,resources,sse"
)

type (
	// Info describes the unified endpoint to non streaming GET clients
	Info struct {
		Service      string   `json:"service"`
		Version      string   `json:"version"`
		Protocol     string   `json:"protocol"`
		McpVersion   string   `json:"mcpVersion"`
		Capabilities string   `json:"capabilities"`
		Servers      int      `json:"servers"`
		Tools        int      `json:"tools"`
		Resources    int      `json:"resources"`
		Endpoints    []string `json:"endpoints"`
	}

	// Health represents health check result
	Health struct {
		Status    string `json:"status"`
		Service   string `json:"service"`
		Servers   int    `json:"servers"`
		Tools     int    `json:"tools"`
		Resources int    `json:"resources"`
	}
)

// Handler returns the proxy routes wrapped in middleware
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	if s.basePath == "" {
		s.routes(mux)
	} else {
		mux.Route(s.basePath, s.routes)
	}
	return ChainMiddlewareHandlers(mux,
		requestLoggerMiddleware(s.logger),
		protocolVersionMiddleware(),
		s.corsConfig.Middleware(),
		originValidationMiddleware(s.corsConfig.AllowOrigins, s.logger),
	)
}

func (s *Server) routes(r chi.Router) {
	r.Get("/", s.handleGet)
	r.Post("/", s.handlePost)
	r.Get("/sse", s.handleLegacySSE)
	r.Post("/message", s.handleLegacyMessage)
	r.Get("/tools", s.handleTools)
	r.Post("/tools/{name}", s.handleToolCall)
	r.Get("/resources", s.handleResources)
	r.Get("/resources/*", s.handleResource)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.metrics.handler(func() (int, int, int) {
		return s.router.Connected(), s.router.ToolCount(), s.router.ResourceCount()
	}))
}

// handleGet opens an SSE session when the client prefers an event stream, otherwise describes the endpoint
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if PrefersEventStream(r.Header.Get("Accept")) {
		s.serveSession(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, s.describe())
}

func (s *Server) describe() *Info {
	return &Info{
		Service:      s.info.Name,
		Version:      s.info.Version,
		Protocol:     transportProtocol,
		McpVersion:   schema.ProtocolVersion,
		Capabilities: capabilities,
		Servers:      s.router.Connected(),
		Tools:        s.router.ToolCount(),
		Resources:    s.router.ResourceCount(),
		Endpoints: []string{
			"GET / (Accept: text/event-stream) - Establish SSE connection",
			"POST / (Accept: application/json) - JSON-RPC request/response",
			"POST / (Accept: text/event-stream) - JSON-RPC with streaming response",
		},
	}
}

// handlePost routes streaming clients to their session and answers everyone else inline
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if PrefersEventStream(r.Header.Get("Accept")) {
		id := sessionID(r)
		if id == "" {
			s.writeRPCError(w, jsonrpc.NewInvalidRequest("Streaming requests require an active SSE session. Use GET with Accept: text/event-stream first.", nil))
			return
		}
		s.dispatch(w, r, id, body)
		return
	}
	s.serveJSON(w, r, body)
}

func (s *Server) handleLegacySSE(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("deprecated endpoint, use GET with Accept: text/event-stream", "path", r.URL.Path)
	s.serveSession(w, r)
}

func (s *Server) handleLegacyMessage(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("deprecated endpoint, use POST with appropriate Accept header", "path", r.URL.Path)
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if id := sessionID(r); id != "" {
		s.dispatch(w, r, id, body)
		return
	}
	s.serveJSON(w, r, body)
}

// serveSession holds the request open for the lifetime of the SSE session
func (s *Server) serveSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Create(w, r, s.basePath)
	if err != nil {
		s.logger.Error("failed to establish SSE connection", "error", err)
		if session == nil && w.Header().Get("Content-Type") != mediaTypeEventStream {
			http.Error(w, "Failed to establish SSE connection", http.StatusInternalServerError)
		}
		return
	}
	defer s.sessions.Remove(session.ID())
	<-session.Done()
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, id string, body []byte) {
	if err := s.sessions.Dispatch(r.Context(), id, body); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "Session not found: "+id, http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// serveJSON answers a plain JSON-RPC request with a per request dispatcher that needs no handshake
func (s *Server) serveJSON(w http.ResponseWriter, r *http.Request, body []byte) {
	handler := s.NewHandler(Initialized)
	defer handler.Close()
	response := handler.Handle(r.Context(), body)
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", mediaTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(response)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	tools := map[string]interface{}{}
	for _, tool := range s.router.ListTools() {
		tools[tool.Name] = tool
	}
	s.writeJSON(w, http.StatusOK, tools)
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	resources := map[string]interface{}{}
	for _, resource := range s.router.ListResources() {
		resources[resource.URI] = resource
	}
	s.writeJSON(w, http.StatusOK, resources)
}

// handleToolCall calls a tool with the request body as its arguments object
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var arguments map[string]interface{}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal(body, &arguments); err != nil {
			http.Error(w, "Invalid JSON parameters: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	result, err := s.router.CallTool(r.Context(), name, arguments)
	if err != nil {
		if errors.Is(err, router.ErrToolNotFound) {
			http.Error(w, "Tool not found: "+name, http.StatusNotFound)
			return
		}
		s.logger.Warn("tool call failed", "tool", name, "error", err)
		http.Error(w, "Failed to call tool: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeRaw(w, result)
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "*")
	result, err := s.router.ReadResource(r.Context(), name)
	if err != nil {
		if errors.Is(err, router.ErrResourceNotFound) {
			http.Error(w, "Resource not found: "+name, http.StatusNotFound)
			return
		}
		s.logger.Warn("resource read failed", "resource", name, "error", err)
		http.Error(w, "Failed to get resource: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeRaw(w, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "DOWN"
	if s.ready.Load() {
		status = "UP"
	}
	s.writeJSON(w, http.StatusOK, &Health{
		Status:    status,
		Service:   s.info.Name,
		Servers:   s.router.Connected(),
		Tools:     s.router.ToolCount(),
		Resources: s.router.ResourceCount(),
	})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func (s *Server) writeRPCError(w http.ResponseWriter, rpcError *jsonrpc.Error) {
	handler := s.NewHandler(Initialized)
	w.Header().Set("Content-Type", mediaTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(handler.encode(nil, nil, rpcError))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", mediaTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) writeRaw(w http.ResponseWriter, data json.RawMessage) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", mediaTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// pathParam returns an unescaped route parameter; resource names carry their own uri scheme
func pathParam(r *http.Request, key string) string {
	value := chi.URLParam(r, key)
	if unescaped, err := url.PathUnescape(value); err == nil {
		return unescaped
	}
	return value
}
