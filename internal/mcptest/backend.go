// Package mcptest provides an in-memory MCP backend for tests: it can be served over
// stdio (by re-executing the test binary), plain HTTP or HTTP+SSE.
package mcptest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/mcp-proxy/schema"
)

// EnvServe makes RunIfRequested serve a backend on stdin/stdout
const EnvServe = "MCP_PROXY_TEST_BACKEND"

// EnvName overrides the stdio backend name
const EnvName = "MCP_PROXY_TEST_BACKEND_NAME"

type (
	message struct {
		Jsonrpc string          `json:"jsonrpc"`
		Id      json.RawMessage `json:"id,omitempty"`
		Method  string          `json:"method,omitempty"`
		Params  json.RawMessage `json:"params,omitempty"`
		Result  interface{}     `json:"result,omitempty"`
		Error   *rpcError       `json:"error,omitempty"`
	}

	rpcError struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	// Backend is a small MCP server exposing a calculator
	Backend struct {
		Name      string
		Tools     []*schema.Tool
		Resources []*schema.Resource
		contents  map[string]string
		calls     atomic.Int64
		mux       sync.Mutex
		methods   []string
	}
)

// Calls returns number of tools/call requests served
func (b *Backend) Calls() int64 {
	return b.calls.Load()
}

// Methods returns every method received, notifications included
func (b *Backend) Methods() []string {
	b.mux.Lock()
	defer b.mux.Unlock()
	return append([]string{}, b.methods...)
}

// Handle processes one JSON-RPC message, nil is returned for notifications
func (b *Backend) Handle(data []byte) []byte {
	request := &message{}
	if err := json.Unmarshal(data, request); err != nil {
		return encode(&message{Jsonrpc: "2.0", Id: json.RawMessage("null"), Error: &rpcError{Code: -32700, Message: err.Error()}})
	}
	b.mux.Lock()
	b.methods = append(b.methods, request.Method)
	b.mux.Unlock()
	if len(request.Id) == 0 || string(request.Id) == "null" {
		return nil
	}
	response := &message{Jsonrpc: "2.0", Id: request.Id}
	result, err := b.dispatch(request)
	if err != nil {
		response.Error = err
	} else {
		response.Result = result
	}
	return encode(response)
}

func (b *Backend) dispatch(request *message) (interface{}, *rpcError) {
	switch request.Method {
	case schema.MethodInitialize:
		return map[string]interface{}{
			"protocolVersion": schema.ProtocolVersion,
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
			"serverInfo":      map[string]interface{}{"name": b.Name, "version": "1.0.0"},
		}, nil
	case schema.MethodToolsList:
		return &schema.ListToolsResult{Tools: b.Tools}, nil
	case schema.MethodResourcesList:
		return &schema.ListResourcesResult{Resources: b.Resources}, nil
	case schema.MethodToolsCall:
		params := &schema.CallToolRequestParams{}
		if err := json.Unmarshal(request.Params, params); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		b.calls.Add(1)
		return b.callTool(params)
	case schema.MethodResourcesRead:
		params := &schema.ReadResourceRequestParams{}
		if err := json.Unmarshal(request.Params, params); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		text, ok := b.contents[params.URI]
		if !ok {
			return nil, &rpcError{Code: -32002, Message: "Resource not found"}
		}
		return map[string]interface{}{"contents": []map[string]string{{"uri": params.URI, "text": text}}}, nil
	}
	return nil, &rpcError{Code: -32601, Message: "Method not found: " + request.Method}
}

func (b *Backend) callTool(params *schema.CallToolRequestParams) (interface{}, *rpcError) {
	switch params.Name {
	case "add":
		a, _ := params.Arguments["a"].(float64)
		c, _ := params.Arguments["b"].(float64)
		return textResult(strconv.FormatFloat(a+c, 'f', -1, 64)), nil
	case "echo":
		return textResult(fmt.Sprintf("%v:%v", b.Name, params.Arguments["text"])), nil
	case "sleep":
		ms, _ := params.Arguments["ms"].(float64)
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return textResult("done"), nil
	}
	return nil, &rpcError{Code: -32602, Message: "Unknown tool: " + params.Name}
}

func textResult(text string) map[string]interface{} {
	return map[string]interface{}{
		"content": []map[string]string{{"type": "text", "text": text}},
		"isError": false,
	}
}

// ServeStdio serves newline delimited JSON-RPC until r is exhausted
func (b *Backend) ServeStdio(r io.Reader, w io.Writer) error {
	writer := bufio.NewWriter(w)
	var mux sync.Mutex
	// banner line emitted by many real servers; clients must ignore it
	fmt.Fprintln(writer, "calculator backend ready")
	writer.Flush()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var wg sync.WaitGroup
	for scanner.Scan() {
		line := append([]byte{}, scanner.Bytes()...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			response := b.Handle(line)
			if response == nil {
				return
			}
			mux.Lock()
			defer mux.Unlock()
			writer.Write(response)
			writer.WriteByte('\n')
			writer.Flush()
		}()
	}
	wg.Wait()
	return scanner.Err()
}

// RunIfRequested serves a stdio backend and exits when EnvServe is set; call it from TestMain
func RunIfRequested() {
	if os.Getenv(EnvServe) == "" {
		return
	}
	name := os.Getenv(EnvName)
	if name == "" {
		name = "calc"
	}
	if err := NewBackend(name).ServeStdio(os.Stdin, os.Stdout); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

// NewBackend creates a calculator backend exposing add, echo and sleep tools and one resource
func NewBackend(name string) *Backend {
	mimeType := "text/plain"
	return &Backend{
		Name: name,
		Tools: []*schema.Tool{
			{Name: "add", Description: "adds a and b", InputSchema: json.RawMessage(`{"type":"object","properties":{"a":{"type":"number"},"b":{"type":"number"}}}`)},
			{Name: "echo", Description: "echoes text"},
			{Name: "sleep", Description: "sleeps ms milliseconds"},
		},
		Resources: []*schema.Resource{
			{URI: "file:///readme.txt", Name: "readme", Description: "readme file", MimeType: &mimeType},
		},
		contents: map[string]string{"file:///readme.txt": "hello from " + name},
	}
}

func encode(m *message) []byte {
	data, _ := json.Marshal(m)
	return data
}
