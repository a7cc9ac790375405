package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/mcp-proxy/schema"
	"github.com/viant/mcp-proxy/transport"
	"golang.org/x/sync/singleflight"
)

// ErrNotConnected is returned for calls on a connection that is not (and could not be re-) established
var ErrNotConnected = errors.New("not connected to MCP server")

// Connection owns exactly one transport client for one configured backend and caches its catalog
type Connection struct {
	name      string
	endpoint  string
	kind      transport.Kind
	factory   transport.Factory
	options   []transport.Option
	logger    *slog.Logger
	observer  Observer
	onRefresh []func(c *Connection)

	mux       sync.RWMutex
	state     State
	client    transport.Client
	tools     []*schema.Tool
	resources []*schema.Resource
	reconnect singleflight.Group
}

// Name returns connection name
func (c *Connection) Name() string {
	return c.name
}

// Endpoint returns configured endpoint
func (c *Connection) Endpoint() string {
	return c.endpoint
}

// Kind returns transport kind derived from the endpoint scheme
func (c *Connection) Kind() transport.Kind {
	return c.kind
}

// State returns current state
func (c *Connection) State() State {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.state
}

// IsConnected returns true in Connected state
func (c *Connection) IsConnected() bool {
	return c.State() == Connected
}

// Tools returns cached tools
func (c *Connection) Tools() []*schema.Tool {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.tools
}

// Resources returns cached resources
func (c *Connection) Resources() []*schema.Resource {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.resources
}

// OnRefresh registers a callback invoked whenever the cached catalog changes,
// including when it is cleared by Disconnect or a failed reconnect
func (c *Connection) OnRefresh(fn func(c *Connection)) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.onRefresh = append(c.onRefresh, fn)
}

// Connect establishes the client, performs the handshake and refreshes the catalog; no-op when connected
func (c *Connection) Connect(ctx context.Context) error {
	if c.State() == Connected {
		return nil
	}
	_, err, _ := c.reconnect.Do("connect", func() (interface{}, error) {
		if c.State() == Connected {
			return nil, nil
		}
		return nil, c.establish(ctx)
	})
	return err
}

// establish runs Connecting -> Connected, or back to Disconnected releasing partial resources
func (c *Connection) establish(ctx context.Context) error {
	c.transition(Connecting)
	started := time.Now()
	client, err := c.factory(ctx, c.endpoint, c.options...)
	if err != nil {
		c.transition(Disconnected)
		c.observe("connect", started, err)
		return fmt.Errorf("failed to create client for %v: %w", c.name, err)
	}
	if err = client.Initialize(ctx); err != nil {
		c.release(client)
		c.transition(Disconnected)
		c.observe("connect", started, err)
		return fmt.Errorf("failed to initialize %v: %w", c.name, err)
	}
	tools, resources, err := c.discover(ctx, client)
	if err != nil {
		c.release(client)
		c.transition(Disconnected)
		c.observe("connect", started, err)
		return fmt.Errorf("failed to refresh catalog of %v: %w", c.name, err)
	}
	c.mux.Lock()
	c.client = client
	c.tools = tools
	c.resources = resources
	c.mux.Unlock()
	c.transition(Connected)
	c.observe("connect", started, nil)
	c.logger.Info("connected", "tools", len(tools), "resources", len(resources))
	c.notifyRefresh()
	return nil
}

// Refresh re-reads the catalog of a connected backend
func (c *Connection) Refresh(ctx context.Context) error {
	client, err := c.activeClient()
	if err != nil {
		return err
	}
	tools, resources, err := c.discover(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to refresh catalog of %v: %w", c.name, err)
	}
	c.mux.Lock()
	c.tools = tools
	c.resources = resources
	c.mux.Unlock()
	c.notifyRefresh()
	return nil
}

func (c *Connection) discover(ctx context.Context, client transport.Client) ([]*schema.Tool, []*schema.Resource, error) {
	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, nil, err
	}
	resources, err := client.ListResources(ctx)
	if err != nil {
		return nil, nil, err
	}
	return tools, resources, nil
}

// EnsureAlive reconnects a streaming backend whose client reported dead.
// Concurrent callers share one reconnection attempt.
func (c *Connection) EnsureAlive(ctx context.Context) error {
	if !c.kind.IsStreaming() {
		return nil
	}
	c.mux.RLock()
	state, client := c.state, c.client
	c.mux.RUnlock()
	if state == Connected && client != nil && client.IsAlive() {
		return nil
	}
	_, err, _ := c.reconnect.Do("connect", func() (interface{}, error) {
		return nil, c.recover(ctx)
	})
	return err
}

// recover is the single reconnection routine: Degraded -> Connected | Disconnected
func (c *Connection) recover(ctx context.Context) error {
	c.mux.Lock()
	if c.state == Connected && c.client != nil && c.client.IsAlive() {
		c.mux.Unlock()
		return nil
	}
	stale := c.client
	c.client = nil
	c.mux.Unlock()
	c.transition(Degraded)
	c.logger.Warn("connection lost, reconnecting")
	if stale != nil {
		c.release(stale)
	}
	if err := c.establish(ctx); err != nil {
		c.clear()
		c.notifyRefresh()
		c.logger.Error("reconnect failed", "error", err)
		return fmt.Errorf("%w: %v: %v", ErrNotConnected, c.name, err)
	}
	return nil
}

// Disconnect closes the client and clears caches, notifying refresh callbacks; safe when already disconnected
func (c *Connection) Disconnect() error {
	c.mux.Lock()
	client := c.client
	c.client = nil
	c.tools = nil
	c.resources = nil
	wasConnected := c.state != Disconnected
	c.mux.Unlock()
	c.transition(Disconnected)
	if client == nil {
		return nil
	}
	c.notifyRefresh()
	if wasConnected {
		c.logger.Info("disconnected")
	}
	return client.Close()
}

// CallTool invokes a backend tool by its original name
func (c *Connection) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error) {
	client, err := c.callable(ctx)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	result, err := client.CallTool(ctx, name, arguments)
	c.observe("tools/call", started, err)
	if err != nil {
		c.logger.Warn("tool call failed", "operation", "tools/call", "tool", name, "error", err)
		return nil, fmt.Errorf("failed to call tool '%v' on server %v: %w", name, c.name, err)
	}
	return result, nil
}

// ReadResource reads a backend resource by its original uri
func (c *Connection) ReadResource(ctx context.Context, uri string) (json.RawMessage, error) {
	client, err := c.callable(ctx)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	result, err := client.ReadResource(ctx, uri)
	c.observe("resources/read", started, err)
	if err != nil {
		c.logger.Warn("resource read failed", "operation", "resources/read", "uri", uri, "error", err)
		return nil, fmt.Errorf("failed to get resource '%v' from server %v: %w", uri, c.name, err)
	}
	return result, nil
}

func (c *Connection) callable(ctx context.Context) (transport.Client, error) {
	if err := c.EnsureAlive(ctx); err != nil {
		return nil, err
	}
	return c.activeClient()
}

func (c *Connection) activeClient() (transport.Client, error) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	if c.state != Connected || c.client == nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, c.name)
	}
	return c.client, nil
}

func (c *Connection) transition(state State) {
	c.mux.Lock()
	previous := c.state
	c.state = state
	c.mux.Unlock()
	if previous != state {
		c.logger.Debug("state changed", "from", previous.String(), "to", state.String())
	}
}

func (c *Connection) clear() {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.tools = nil
	c.resources = nil
}

func (c *Connection) release(client transport.Client) {
	if err := client.Close(); err != nil {
		c.logger.Debug("failed to close client", "error", err)
	}
}

func (c *Connection) notifyRefresh() {
	c.mux.RLock()
	callbacks := append([]func(*Connection){}, c.onRefresh...)
	c.mux.RUnlock()
	for _, callback := range callbacks {
		callback(c)
	}
}

func (c *Connection) observe(operation string, started time.Time, err error) {
	if c.observer != nil {
		c.observer.ObserveBackend(c.name, operation, time.Since(started), err)
	}
}

// New creates a disconnected connection; the endpoint scheme must be supported
func New(name, endpoint string, options ...Option) (*Connection, error) {
	parsed, err := transport.ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	ret := &Connection{
		name:     name,
		endpoint: endpoint,
		kind:     parsed.Kind,
		factory:  transport.New,
		state:    Disconnected,
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	base := ret.logger
	ret.logger = base.With("server", name)
	ret.options = append([]transport.Option{transport.WithName(name), transport.WithLogger(base)}, ret.options...)
	return ret, nil
}
