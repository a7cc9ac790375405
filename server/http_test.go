package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-proxy/connection"
	"github.com/viant/mcp-proxy/router"
	"github.com/viant/mcp-proxy/schema"
	"github.com/viant/mcp-proxy/transport"
)

func startHTTP(t *testing.T, options ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s := newTestServer(t, options...)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func doRequest(t *testing.T, method, URL, accept, body string, headers ...string) (*http.Response, string) {
	t.Helper()
	request, err := http.NewRequest(method, URL, strings.NewReader(body))
	require.NoError(t, err)
	if accept != "" {
		request.Header.Set("Accept", accept)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		request.Header.Set(headers[i], headers[i+1])
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return response, string(data)
}

func TestServer_JSONRPC(t *testing.T) {
	_, srv := startHTTP(t)
	endpoint := srv.URL + "/mcp/v1"

	var testCases = []struct {
		description   string
		accept        string
		body          string
		headers       []string
		expectStatus  int
		expectVersion string
		expectBody    string
	}{
		{
			description:   "tool call without handshake",
			accept:        "application/json",
			body:          `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"calc_add","arguments":{"a":2,"b":3}}}`,
			expectStatus:  http.StatusOK,
			expectVersion: schema.ProtocolVersion,
			expectBody:    `"text":"5"`,
		},
		{
			description:   "version header echoed",
			accept:        "application/json, text/event-stream;q=0.5",
			body:          `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
			headers:       []string{versionHeader, "2025-03-26"},
			expectStatus:  http.StatusOK,
			expectVersion: "2025-03-26",
			expectBody:    `"calc_echo"`,
		},
		{
			description:  "notification",
			body:         `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			expectStatus: http.StatusAccepted,
		},
		{
			description:  "parse error answered with 200",
			body:         `not json`,
			expectStatus: http.StatusOK,
			expectBody:   `-32700`,
		},
		{
			description:  "streaming request without session",
			accept:       "text/event-stream",
			body:         `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`,
			expectStatus: http.StatusOK,
			expectBody:   "Streaming requests require an active SSE session",
		},
		{
			description:  "streaming request with unknown session",
			accept:       "text/event-stream",
			body:         `{"jsonrpc":"2.0","id":4,"method":"tools/list"}`,
			headers:      []string{sessionHeader, "mcp-sse-404"},
			expectStatus: http.StatusNotFound,
			expectBody:   "Session not found",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			response, body := doRequest(t, http.MethodPost, endpoint, testCase.accept, testCase.body, testCase.headers...)
			assert.Equal(t, testCase.expectStatus, response.StatusCode, body)
			if testCase.expectVersion != "" {
				assert.Equal(t, testCase.expectVersion, response.Header.Get(versionHeader))
			}
			assert.NotEmpty(t, response.Header.Get(requestIDHeader))
			assert.Contains(t, body, testCase.expectBody)
		})
	}
}

func TestServer_InfoAndHealth(t *testing.T) {
	s, srv := startHTTP(t)

	response, body := doRequest(t, http.MethodGet, srv.URL+"/mcp/v1", "application/json", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	info := &Info{}
	require.NoError(t, json.Unmarshal([]byte(body), info))
	assert.Equal(t, "mcp-proxy", info.Service)
	assert.Equal(t, "streamable-http", info.Protocol)
	assert.Equal(t, schema.ProtocolVersion, info.McpVersion)
	assert.Equal(t, "tools,resources,sse", info.Capabilities)
	assert.Equal(t, 1, info.Servers)
	assert.Equal(t, 3, info.Tools)
	assert.Equal(t, 1, info.Resources)
	assert.Len(t, info.Endpoints, 3)

	health := &Health{}
	_, body = doRequest(t, http.MethodGet, srv.URL+"/mcp/v1/health", "", "")
	require.NoError(t, json.Unmarshal([]byte(body), health))
	assert.Equal(t, "DOWN", health.Status)

	s.SetReady(true)
	_, body = doRequest(t, http.MethodGet, srv.URL+"/mcp/v1/health", "", "")
	require.NoError(t, json.Unmarshal([]byte(body), health))
	assert.Equal(t, "UP", health.Status)
	assert.Equal(t, 1, health.Servers)
	assert.Equal(t, 3, health.Tools)
	assert.Equal(t, 1, health.Resources)
}

func TestServer_LegacyRoutes(t *testing.T) {
	_, srv := startHTTP(t)
	base := srv.URL + "/mcp/v1"

	_, body := doRequest(t, http.MethodGet, base+"/tools", "", "")
	tools := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal([]byte(body), &tools))
	assert.Contains(t, tools, "calc_add")
	assert.Len(t, tools, 3)

	_, body = doRequest(t, http.MethodGet, base+"/resources", "", "")
	resources := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal([]byte(body), &resources))
	assert.Contains(t, resources, "calc.file:///readme.txt")

	var testCases = []struct {
		description  string
		method       string
		path         string
		body         string
		expectStatus int
		expectBody   string
	}{
		{description: "call tool", method: http.MethodPost, path: "/tools/calc_add", body: `{"a":1,"b":2}`, expectStatus: http.StatusOK, expectBody: `"text":"3"`},
		{description: "call tool without body", method: http.MethodPost, path: "/tools/calc_echo", expectStatus: http.StatusOK, expectBody: "calc:"},
		{description: "unknown tool", method: http.MethodPost, path: "/tools/missing", body: `{}`, expectStatus: http.StatusNotFound, expectBody: "Tool not found: missing"},
		{description: "invalid arguments", method: http.MethodPost, path: "/tools/calc_add", body: `{"a":`, expectStatus: http.StatusBadRequest, expectBody: "Invalid JSON parameters"},
		{description: "read resource", method: http.MethodGet, path: "/resources/" + url.PathEscape("calc.file:///readme.txt"), expectStatus: http.StatusOK, expectBody: "hello from calc"},
		{description: "unknown resource", method: http.MethodGet, path: "/resources/nowhere", expectStatus: http.StatusNotFound, expectBody: "Resource not found: nowhere"},
		{description: "backend resource error", method: http.MethodGet, path: "/resources/" + url.PathEscape("calc.file:///missing"), expectStatus: http.StatusInternalServerError, expectBody: "Failed to get resource"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			response, body := doRequest(t, testCase.method, base+testCase.path, "", testCase.body)
			assert.Equal(t, testCase.expectStatus, response.StatusCode, body)
			assert.Contains(t, body, testCase.expectBody)
		})
	}
}

func TestServer_LegacyMessageWithoutSession(t *testing.T) {
	_, srv := startHTTP(t)
	response, body := doRequest(t, http.MethodPost, srv.URL+"/mcp/v1/message", "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "calc_add")
}

// eventStream opens an SSE session and delivers its events on a channel
func eventStream(t *testing.T, URL string) (chan *transport.Event, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, URL, nil)
	require.NoError(t, err)
	request.Header.Set("Accept", "text/event-stream")
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)
	events := make(chan *transport.Event, 16)
	go func() {
		defer close(events)
		_ = transport.ReadEvents(bufio.NewReader(response.Body), func(event *transport.Event) {
			events <- event
		})
	}()
	return events, func() {
		cancel()
		_ = response.Body.Close()
	}
}

func nextEvent(t *testing.T, events chan *transport.Event) *transport.Event {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok, "event stream ended")
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestServer_SSESession(t *testing.T) {
	for _, path := range []string{"/mcp/v1", "/mcp/v1/sse"} {
		t.Run(path, func(t *testing.T) {
			s, srv := startHTTP(t)
			events, closeStream := eventStream(t, srv.URL+path)

			connected := nextEvent(t, events)
			assert.Equal(t, eventConnected, connected.Name)
			endpoint := nextEvent(t, events)
			assert.Equal(t, eventEndpoint, endpoint.Name)
			assert.Equal(t, "/mcp/v1/message?session="+connected.Data, endpoint.Data)

			response, _ := doRequest(t, http.MethodPost, srv.URL+endpoint.Data, "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
			assert.Equal(t, http.StatusAccepted, response.StatusCode)
			assert.Contains(t, nextEvent(t, events).Data, "-32002")

			response, _ = doRequest(t, http.MethodPost, srv.URL+endpoint.Data, "", initializeRequest)
			assert.Equal(t, http.StatusAccepted, response.StatusCode)
			message := nextEvent(t, events)
			assert.Equal(t, eventMessage, message.Name)
			assert.Contains(t, message.Data, `"serverInfo"`)

			response, _ = doRequest(t, http.MethodPost, srv.URL+"/mcp/v1", "text/event-stream",
				`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"calc_add","arguments":{"a":2,"b":3}}}`,
				sessionHeader, connected.Data)
			assert.Equal(t, http.StatusAccepted, response.StatusCode)
			reply := decodeReply(t, []byte(nextEvent(t, events).Data))
			assert.Equal(t, "2", string(reply.Id))
			assert.Contains(t, string(reply.Result), `"text":"5"`)

			assert.Equal(t, 1, s.Sessions().Count())
			closeStream()
			assert.Eventually(t, func() bool { return s.Sessions().Count() == 0 }, 5*time.Second, 10*time.Millisecond)
		})
	}
}

func TestServer_ShutdownClosesSessions(t *testing.T) {
	s, srv := startHTTP(t)
	events, closeStream := eventStream(t, srv.URL+"/mcp/v1")
	defer closeStream()
	nextEvent(t, events)
	nextEvent(t, events)

	s.Sessions().Shutdown()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("expected event stream to end")
	}
}

func TestServer_Metrics(t *testing.T) {
	_, srv := startHTTP(t)
	doRequest(t, http.MethodPost, srv.URL+"/mcp/v1", "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	response, body := doRequest(t, http.MethodGet, srv.URL+"/mcp/v1/metrics", "", "")
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, `mcp_proxy_requests_total{code="0",method="tools/list"} 1`)
	assert.Contains(t, body, "mcp_proxy_sse_sessions 0")
	assert.Contains(t, body, "mcp_proxy_aggregated_tools 3")
}

func TestServer_Origin(t *testing.T) {
	_, srv := startHTTP(t, WithCORS(&Cors{
		AllowOrigins: []string{"http://allowed.test"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	response, _ := doRequest(t, http.MethodGet, srv.URL+"/mcp/v1/health", "", "", "Origin", "http://evil.test")
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
	response, _ = doRequest(t, http.MethodGet, srv.URL+"/mcp/v1/health", "", "", "Origin", "http://allowed.test")
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "http://allowed.test", response.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_BasePath(t *testing.T) {
	_, err := New(router.New(), WithBasePath("mcp"))
	assert.Error(t, err)

	_, srv := startHTTP(t, WithBasePath(""))
	response, body := doRequest(t, http.MethodGet, srv.URL+"/tools", "", "")
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "calc_add")
}

func TestServer_AsClient(t *testing.T) {
	s := newTestServer(t)
	chained := router.New(router.WithLogger(discardLogger()))
	conn, err := connection.New("proxy", "http://in-process", connection.WithLogger(discardLogger()),
		connection.WithFactory(func(ctx context.Context, endpoint string, options ...transport.Option) (transport.Client, error) {
			return s.AsClient(), nil
		}))
	require.NoError(t, err)
	require.NoError(t, chained.Add(conn))
	require.NoError(t, chained.Start(context.Background()))
	defer chained.Stop()

	assert.Equal(t, 3, chained.ToolCount())
	result, err := chained.CallTool(context.Background(), "proxy_calc_add", map[string]interface{}{"a": 4, "b": 4})
	require.NoError(t, err)
	assert.Contains(t, string(result), `"text":"8"`)

	result, err = chained.ReadResource(context.Background(), "proxy.calc.file:///readme.txt")
	require.NoError(t, err)
	assert.Contains(t, string(result), "hello from calc")

	adapter := s.AsClient()
	_, err = adapter.ListTools(context.Background())
	require.Error(t, err)
	require.NoError(t, adapter.Close())
	assert.False(t, adapter.IsAlive())
	_, err = adapter.ListTools(context.Background())
	assert.ErrorIs(t, err, transport.ErrClosed)
}
