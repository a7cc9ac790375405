package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-proxy/schema"
)

const initializeRequest = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"tester","version":"0.1"}}}`

func TestHandler_Handle(t *testing.T) {
	s := newTestServer(t)
	var testCases = []struct {
		description string
		state       State
		request     string
		expectNil   bool
		expectCode  int
		expectID    string
		expectText  string
	}{
		{
			description: "tools/list before initialize",
			state:       Uninitialized,
			request:     `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
			expectCode:  schema.ServerNotInitialized,
			expectID:    "1",
		},
		{
			description: "resources/read before initialize",
			state:       Uninitialized,
			request:     `{"jsonrpc":"2.0","id":"a","method":"resources/read","params":{"uri":"calc.file:///readme.txt"}}`,
			expectCode:  schema.ServerNotInitialized,
			expectID:    `"a"`,
		},
		{
			description: "parse error",
			state:       Initialized,
			request:     `{"jsonrpc":`,
			expectCode:  schema.ParseError,
			expectID:    "null",
		},
		{
			description: "invalid version",
			state:       Initialized,
			request:     `{"jsonrpc":"1.0","id":3,"method":"tools/list"}`,
			expectCode:  schema.InvalidRequest,
			expectID:    "3",
		},
		{
			description: "missing method",
			state:       Initialized,
			request:     `{"jsonrpc":"2.0","id":4}`,
			expectCode:  schema.InvalidRequest,
			expectID:    "4",
		},
		{
			description: "unknown method",
			state:       Initialized,
			request:     `{"jsonrpc":"2.0","id":5,"method":"prompts/list"}`,
			expectCode:  schema.MethodNotFound,
			expectText:  "Method not found: prompts/list",
		},
		{
			description: "notification",
			state:       Uninitialized,
			request:     `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			expectNil:   true,
		},
		{
			description: "tools/call without name",
			state:       Initialized,
			request:     `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"arguments":{}}}`,
			expectCode:  schema.InvalidParams,
		},
		{
			description: "resources/read without uri",
			state:       Initialized,
			request:     `{"jsonrpc":"2.0","id":7,"method":"resources/read","params":{}}`,
			expectCode:  schema.InvalidParams,
		},
		{
			description: "unknown tool",
			state:       Initialized,
			request:     `{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"nope"}}`,
			expectCode:  schema.InvalidParams,
			expectText:  "Tool not found: nope",
		},
		{
			description: "unknown resource",
			state:       Initialized,
			request:     `{"jsonrpc":"2.0","id":9,"method":"resources/read","params":{"uri":"other.file:///x"}}`,
			expectCode:  schema.InvalidParams,
			expectText:  "Resource not found: other.file:///x",
		},
		{
			description: "tool call",
			state:       Initialized,
			request:     `{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{"name":"calc_add","arguments":{"a":2,"b":3}}}`,
			expectID:    "10",
			expectText:  `"text":"5"`,
		},
		{
			description: "tool call by server.tool",
			state:       Initialized,
			request:     `{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"calc.echo","arguments":{"text":"hi"}}}`,
			expectText:  `calc:hi`,
		},
		{
			description: "resource read",
			state:       Initialized,
			request:     `{"jsonrpc":"2.0","id":12,"method":"resources/read","params":{"uri":"calc.file:///readme.txt"}}`,
			expectText:  "hello from calc",
		},
		{
			description: "closed dispatcher",
			state:       Closed,
			request:     `{"jsonrpc":"2.0","id":13,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
			expectCode:  schema.InternalError,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			handler := s.NewHandler(testCase.state)
			data := handler.Handle(context.Background(), []byte(testCase.request))
			if testCase.expectNil {
				assert.Nil(t, data)
				return
			}
			reply := decodeReply(t, data)
			assert.Equal(t, jsonrpc.Version, reply.Jsonrpc)
			if testCase.expectID != "" {
				assert.Equal(t, testCase.expectID, string(reply.Id))
			}
			if testCase.expectCode != 0 {
				require.NotNil(t, reply.Error, string(data))
				assert.Equal(t, testCase.expectCode, reply.Error.Code)
				if testCase.expectText != "" {
					assert.Equal(t, testCase.expectText, reply.Error.Message)
				}
				return
			}
			require.Nil(t, reply.Error, string(data))
			assert.Contains(t, string(reply.Result), testCase.expectText)
		})
	}
}

func TestHandler_Initialize(t *testing.T) {
	s := newTestServer(t)
	handler := s.NewHandler(Uninitialized)
	ctx := context.Background()

	reply := decodeReply(t, handler.Handle(ctx, []byte(initializeRequest)))
	require.Nil(t, reply.Error)
	result := &schema.InitializeResult{}
	require.NoError(t, json.Unmarshal(reply.Result, result))
	assert.Equal(t, schema.ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "mcp-proxy", result.ServerInfo.Name)
	assert.Equal(t, Initialized, handler.State())
	require.NotNil(t, handler.ClientInfo())
	assert.Equal(t, "tester", handler.ClientInfo().Name)

	reply = decodeReply(t, handler.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)))
	require.Nil(t, reply.Error)
	tools := &schema.ListToolsResult{}
	require.NoError(t, json.Unmarshal(reply.Result, tools))
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"calc_add", "calc_echo", "calc_sleep"}, names)

	reply = decodeReply(t, handler.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":3,"method":"initialize","params":{}}`)))
	require.NotNil(t, reply.Error)
	assert.Equal(t, schema.InvalidParams, reply.Error.Code)
}

func TestHandler_Cancel(t *testing.T) {
	s := newTestServer(t)
	handler := s.NewHandler(Initialized)
	ctx, done := handler.track(context.Background(), json.RawMessage(`7`))
	defer done()

	assert.Nil(t, handler.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":"7","reason":"user"}}`)))
	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected request context to be cancelled")
	}
	assert.False(t, handler.CancelOperation(json.RawMessage(`7`)))

	err := handler.Cancel(context.Background(), &jsonrpc.Notification{Method: schema.MethodNotificationCancelled, Params: []byte(`{}`)})
	require.NotNil(t, err)
	assert.Equal(t, schema.InvalidParams, int(err.Code))
}

func TestHandler_CloseCancelsInFlight(t *testing.T) {
	s := newTestServer(t)
	handler := s.NewHandler(Initialized)
	ctx, done := handler.track(context.Background(), json.RawMessage(`"x"`))
	defer done()
	handler.Close()
	handler.Close()
	assert.Equal(t, Closed, handler.State())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "initialized", Initialized.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "unknown", State(42).String())
}
