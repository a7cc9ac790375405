package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-proxy/connection"
	"github.com/viant/mcp-proxy/internal/mcptest"
	"github.com/viant/mcp-proxy/router"
)

type testReply struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter starts one HTTP calculator backend per name and connects a router to them
func newTestRouter(t *testing.T, names ...string) *router.Router {
	t.Helper()
	logger := discardLogger()
	r := router.New(router.WithLogger(logger))
	for _, name := range names {
		backend := mcptest.NewBackend(name)
		srv := httptest.NewServer(backend.HTTPHandler())
		t.Cleanup(srv.Close)
		conn, err := connection.New(name, srv.URL, connection.WithLogger(logger))
		require.NoError(t, err)
		require.NoError(t, r.Add(conn))
	}
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

func newTestServer(t *testing.T, options ...Option) *Server {
	t.Helper()
	options = append([]Option{WithLogger(discardLogger())}, options...)
	s, err := New(newTestRouter(t, "calc"), options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func decodeReply(t *testing.T, data []byte) *testReply {
	t.Helper()
	ret := &testReply{}
	require.NoError(t, json.Unmarshal(data, ret), string(data))
	return ret
}
