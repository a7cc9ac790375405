package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-proxy/connection"
	"github.com/viant/mcp-proxy/schema"
	"github.com/viant/mcp-proxy/transport"
)

// fakeClient serves a fixed catalog and records calls
type fakeClient struct {
	server    string
	mux       sync.Mutex
	tools     []*schema.Tool
	resources []*schema.Resource
	failWith  map[string]error
	calls     []string
}

func (f *fakeClient) Kind() transport.Kind { return transport.KindHTTP }

func (f *fakeClient) Initialize(ctx context.Context) error { return nil }

func (f *fakeClient) ListTools(ctx context.Context) ([]*schema.Tool, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.tools, nil
}

func (f *fakeClient) ListResources(ctx context.Context) ([]*schema.Resource, error) {
	return f.resources, nil
}

func (f *fakeClient) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.calls = append(f.calls, name)
	if err, ok := f.failWith[name]; ok {
		return nil, err
	}
	for _, tool := range f.tools {
		if tool.Name == name {
			return json.RawMessage(`"` + f.server + ":" + name + `"`), nil
		}
	}
	return nil, schema.NewToolNotFound(name)
}

func (f *fakeClient) ReadResource(ctx context.Context, uri string) (json.RawMessage, error) {
	return json.RawMessage(`"` + f.server + ":" + uri + `"`), nil
}

func (f *fakeClient) IsAlive() bool { return true }

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) setTools(names ...string) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.tools = nil
	for _, name := range names {
		f.tools = append(f.tools, &schema.Tool{Name: name, Description: name + " tool"})
	}
}

func newFakeConnection(t *testing.T, client *fakeClient, err error) *connection.Connection {
	conn, cErr := connection.New(client.server, "http://localhost/"+client.server, connection.WithFactory(
		func(ctx context.Context, endpoint string, options ...transport.Option) (transport.Client, error) {
			if err != nil {
				return nil, err
			}
			return client, nil
		}))
	require.NoError(t, cErr)
	return conn
}

func newTestRouter(t *testing.T) (*Router, *fakeClient, *fakeClient) {
	alpha := &fakeClient{server: "alpha", resources: []*schema.Resource{{URI: "file:///a.txt", Name: "a"}}}
	alpha.setTools("read", "write")
	beta := &fakeClient{server: "beta", resources: []*schema.Resource{{URI: "db://users", Name: "users"}}}
	beta.setTools("read", "special")
	r := New()
	require.NoError(t, r.Add(newFakeConnection(t, alpha, nil)))
	require.NoError(t, r.Add(newFakeConnection(t, beta, nil)))
	require.NoError(t, r.Start(context.Background()))
	return r, alpha, beta
}

func toolNames(tools []*schema.Tool) []string {
	var result []string
	for _, tool := range tools {
		result = append(result, tool.Name)
	}
	return result
}

func TestRouter_Aggregate(t *testing.T) {
	r, _, beta := newTestRouter(t)
	assert.Equal(t, []string{"alpha_read", "alpha_write", "beta_read", "beta_special"}, toolNames(r.ListTools()))
	assert.Equal(t, "read tool", r.ListTools()[0].Description)
	resources := r.ListResources()
	require.Len(t, resources, 2)
	assert.Equal(t, "alpha.file:///a.txt", resources[0].URI)
	assert.Equal(t, "beta.db://users", resources[1].URI)
	assert.Equal(t, 2, r.Servers())
	assert.Equal(t, 2, r.Connected())

	// re-aggregation is idempotent
	conn, ok := r.Connection("beta")
	require.True(t, ok)
	r.Aggregate(conn)
	assert.Equal(t, 4, r.ToolCount())
	assert.Equal(t, 2, r.ResourceCount())

	// refresh replaces only the refreshed server entries
	beta.setTools("read")
	require.NoError(t, conn.Refresh(context.Background()))
	assert.Equal(t, []string{"alpha_read", "alpha_write", "beta_read"}, toolNames(r.ListTools()))
}

func TestRouter_DisconnectDropsCatalog(t *testing.T) {
	r, _, _ := newTestRouter(t)
	conn, ok := r.Connection("beta")
	require.True(t, ok)
	require.NoError(t, conn.Disconnect())
	assert.Equal(t, []string{"alpha_read", "alpha_write"}, toolNames(r.ListTools()))
	assert.Equal(t, 1, r.ResourceCount())
	assert.Equal(t, 1, r.Connected())
}

func TestRouter_AddDuplicate(t *testing.T) {
	r := New()
	client := &fakeClient{server: "alpha"}
	require.NoError(t, r.Add(newFakeConnection(t, client, nil)))
	err := r.Add(newFakeConnection(t, client, nil))
	assert.True(t, errors.Is(err, ErrDuplicateServer))
}

func TestRouter_CallTool(t *testing.T) {
	var testCases = []struct {
		description string
		name        string
		expect      string
		expectErr   error
	}{
		{description: "exposed key", name: "beta_read", expect: `"beta:read"`},
		{description: "server dot tool", name: "alpha.write", expect: `"alpha:write"`},
		{description: "broadcast skips tool not found", name: "special", expect: `"beta:special"`},
		{description: "broadcast first match", name: "read", expect: `"alpha:read"`},
		{description: "unknown tool", name: "nothing", expectErr: ErrToolNotFound},
		{description: "unknown server prefix", name: "gamma.read", expectErr: ErrToolNotFound},
	}
	r, _, _ := newTestRouter(t)
	for _, testCase := range testCases {
		result, err := r.CallTool(context.Background(), testCase.name, nil)
		if testCase.expectErr != nil {
			assert.True(t, errors.Is(err, testCase.expectErr), testCase.description)
			assert.EqualError(t, err, "tool not found: "+testCase.name, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, string(result), testCase.description)
	}
}

func TestRouter_CallToolSuffixKey(t *testing.T) {
	r, alpha, _ := newTestRouter(t)
	r.tools.Put("alpha.legacy", &toolEntry{server: "alpha", original: "legacy", tool: &schema.Tool{Name: "legacy"}})
	alpha.setTools("legacy")
	result, err := r.CallTool(context.Background(), "legacy", nil)
	require.NoError(t, err)
	assert.Equal(t, `"alpha:legacy"`, string(result))
}

func TestRouter_BroadcastReturnsFirstBackendError(t *testing.T) {
	r, alpha, beta := newTestRouter(t)
	alpha.failWith = map[string]error{"special": jsonrpc.NewInternalError("backend exploded", nil)}
	_, err := r.CallTool(context.Background(), "special", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend exploded")
	assert.NotContains(t, beta.calls, "special")
}

func TestRouter_BroadcastKeepsToolErrors(t *testing.T) {
	r, alpha, beta := newTestRouter(t)
	alpha.failWith = map[string]error{"special": jsonrpc.NewInvalidParamsError("file not found: /tmp/a", nil)}
	_, err := r.CallTool(context.Background(), "special", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
	assert.False(t, errors.Is(err, ErrToolNotFound))
	assert.NotContains(t, beta.calls, "special")
}

func TestRouter_ReadResource(t *testing.T) {
	r, _, _ := newTestRouter(t)
	content, err := r.ReadResource(context.Background(), "beta.db://users")
	require.NoError(t, err)
	assert.Equal(t, `"beta:db://users"`, string(content))

	for _, name := range []string{"nodot", "gamma.file:///a.txt"} {
		_, err = r.ReadResource(context.Background(), name)
		assert.True(t, errors.Is(err, ErrResourceNotFound), name)
		assert.EqualError(t, err, "resource not found: "+name)
	}
}

func TestRouter_StartSkipsFailedBackend(t *testing.T) {
	alpha := &fakeClient{server: "alpha"}
	alpha.setTools("read")
	r := New(WithConcurrency(1))
	require.NoError(t, r.Add(newFakeConnection(t, &fakeClient{server: "down"}, errors.New("connection refused"))))
	require.NoError(t, r.Add(newFakeConnection(t, alpha, nil)))
	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, 2, r.Servers())
	assert.Equal(t, 1, r.Connected())
	assert.Equal(t, []string{"alpha_read"}, toolNames(r.ListTools()))

	// a disconnected server is not part of the broadcast
	result, err := r.CallTool(context.Background(), "read", nil)
	require.NoError(t, err)
	assert.Equal(t, `"alpha:read"`, string(result))

	require.NoError(t, r.Stop())
	assert.Equal(t, 0, r.ToolCount())
	assert.Equal(t, 0, r.Connected())
}
