package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/viant/mcp-proxy/connection"
	"github.com/viant/mcp-proxy/internal/collection"
	"github.com/viant/mcp-proxy/schema"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrToolNotFound is returned when no backend resolves a tool name
	ErrToolNotFound = errors.New("tool not found")
	// ErrResourceNotFound is returned when no backend resolves a resource name
	ErrResourceNotFound = errors.New("resource not found")
	// ErrDuplicateServer is returned when a server name is registered twice
	ErrDuplicateServer = errors.New("duplicate server name")
)

type (
	toolEntry struct {
		server   string
		original string
		tool     *schema.Tool
	}

	resourceEntry struct {
		server   string
		resource *schema.Resource
	}

	// Router aggregates backend catalogs and resolves calls to their owning connection
	Router struct {
		logger      *slog.Logger
		concurrency int
		connections *collection.SyncMap[string, *connection.Connection]
		orderMux    sync.RWMutex
		order       []string
		// aggregateMux serialises per-server rewrites of the namespace
		aggregateMux sync.Mutex
		tools        *collection.SyncMap[string, *toolEntry]
		resources    *collection.SyncMap[string, *resourceEntry]
	}
)

// Add registers a connection; its catalog is aggregated after every refresh
func (r *Router) Add(conn *connection.Connection) error {
	if _, added := r.connections.PutIfAbsent(conn.Name(), conn); !added {
		return fmt.Errorf("%w: %v", ErrDuplicateServer, conn.Name())
	}
	r.orderMux.Lock()
	r.order = append(r.order, conn.Name())
	r.orderMux.Unlock()
	conn.OnRefresh(r.Aggregate)
	return nil
}

// Connection returns registered connection
func (r *Router) Connection(name string) (*connection.Connection, bool) {
	return r.connections.Get(name)
}

// Connections returns connections in registration order
func (r *Router) Connections() []*connection.Connection {
	r.orderMux.RLock()
	defer r.orderMux.RUnlock()
	result := make([]*connection.Connection, 0, len(r.order))
	for _, name := range r.order {
		if conn, ok := r.connections.Get(name); ok {
			result = append(result, conn)
		}
	}
	return result
}

// Aggregate replaces the namespace entries owned by conn with its current catalog
func (r *Router) Aggregate(conn *connection.Connection) {
	r.aggregateMux.Lock()
	defer r.aggregateMux.Unlock()
	server := conn.Name()
	r.tools.DeleteFunc(func(key string, entry *toolEntry) bool { return entry.server == server })
	r.resources.DeleteFunc(func(key string, entry *resourceEntry) bool { return entry.server == server })
	for _, tool := range conn.Tools() {
		key := SanitizeToolName(server + "_" + tool.Name)
		if prev, ok := r.tools.Get(key); ok && prev.server != server {
			r.logger.Warn("tool name collision, replacing", "tool", key, "server", server, "previous", prev.server)
		}
		r.tools.Put(key, &toolEntry{server: server, original: tool.Name, tool: tool})
	}
	for _, resource := range conn.Resources() {
		r.resources.Put(server+"."+resource.URI, &resourceEntry{server: server, resource: resource})
	}
	r.logger.Debug("aggregated catalog", "server", server, "tools", len(conn.Tools()), "resources", len(conn.Resources()))
}

// ListTools returns aggregated tools named by their exposed key, sorted by key
func (r *Router) ListTools() []*schema.Tool {
	keys := collection.SortedKeys(r.tools)
	result := make([]*schema.Tool, 0, len(keys))
	for _, key := range keys {
		if entry, ok := r.tools.Get(key); ok {
			result = append(result, entry.tool.Clone(key))
		}
	}
	return result
}

// ListResources returns aggregated resources addressed by their exposed key, sorted by key
func (r *Router) ListResources() []*schema.Resource {
	keys := collection.SortedKeys(r.resources)
	result := make([]*schema.Resource, 0, len(keys))
	for _, key := range keys {
		if entry, ok := r.resources.Get(key); ok {
			result = append(result, entry.resource.Clone(key))
		}
	}
	return result
}

// CallTool resolves name and invokes the tool on its backend.
// Resolution order: exposed key, "server.tool", aggregated key suffix ".name", then every connected server.
func (r *Router) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error) {
	if entry, ok := r.tools.Get(name); ok {
		if conn, ok := r.connections.Get(entry.server); ok {
			r.logger.Debug("routing tool", "tool", name, "server", entry.server, "original", entry.original)
			return conn.CallTool(ctx, entry.original, arguments)
		}
	}
	if server, tool, ok := strings.Cut(name, "."); ok {
		if conn, ok := r.connections.Get(server); ok {
			return conn.CallTool(ctx, tool, arguments)
		}
	}
	for _, key := range collection.SortedKeys(r.tools) {
		if !strings.HasSuffix(key, "."+name) {
			continue
		}
		server, tool, _ := strings.Cut(key, ".")
		if conn, ok := r.connections.Get(server); ok {
			return conn.CallTool(ctx, tool, arguments)
		}
	}
	return r.broadcast(ctx, name, arguments)
}

// broadcast tries every connected server in registration order; the first outcome other than
// "tool not found" wins, so a backend error can hide a later server that owns the tool
func (r *Router) broadcast(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error) {
	for _, conn := range r.Connections() {
		if !conn.IsConnected() {
			continue
		}
		result, err := conn.CallTool(ctx, name, arguments)
		if err != nil && schema.IsToolNotFound(err) {
			continue
		}
		r.logger.Warn("tool resolved by broadcast, name is ambiguous", "tool", name, "server", conn.Name())
		return result, err
	}
	return nil, fmt.Errorf("%w: %v", ErrToolNotFound, name)
}

// ReadResource splits name on its first dot into server and uri and reads it from that backend
func (r *Router) ReadResource(ctx context.Context, name string) (json.RawMessage, error) {
	if server, uri, ok := strings.Cut(name, "."); ok {
		if conn, ok := r.connections.Get(server); ok {
			return conn.ReadResource(ctx, uri)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrResourceNotFound, name)
}

// Start connects every registered backend concurrently; failed backends are logged and skipped
func (r *Router) Start(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for _, conn := range r.Connections() {
		conn := conn
		group.Go(func() error {
			if err := conn.Connect(groupCtx); err != nil {
				r.logger.Error("failed to connect to MCP server", "server", conn.Name(), "endpoint", conn.Endpoint(), "error", err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	r.logger.Info("backends started", "servers", r.Connected(), "configured", r.Servers(), "tools", r.ToolCount(), "resources", r.ResourceCount())
	return ctx.Err()
}

// Stop disconnects every backend and clears the namespace
func (r *Router) Stop() error {
	var errs []error
	for _, conn := range r.Connections() {
		if err := conn.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect %v: %w", conn.Name(), err))
		}
	}
	r.aggregateMux.Lock()
	r.tools.DeleteFunc(func(string, *toolEntry) bool { return true })
	r.resources.DeleteFunc(func(string, *resourceEntry) bool { return true })
	r.aggregateMux.Unlock()
	return errors.Join(errs...)
}

// Servers returns number of registered servers
func (r *Router) Servers() int {
	return r.connections.Len()
}

// Connected returns number of connected servers
func (r *Router) Connected() int {
	count := 0
	for _, conn := range r.Connections() {
		if conn.IsConnected() {
			count++
		}
	}
	return count
}

// ToolCount returns number of aggregated tools
func (r *Router) ToolCount() int {
	return r.tools.Len()
}

// ResourceCount returns number of aggregated resources
func (r *Router) ResourceCount() int {
	return r.resources.Len()
}

// New creates an empty router
func New(options ...Option) *Router {
	ret := &Router{
		concurrency: defaultConcurrency,
		connections: collection.NewSyncMap[string, *connection.Connection](),
		tools:       collection.NewSyncMap[string, *toolEntry](),
		resources:   collection.NewSyncMap[string, *resourceEntry](),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	return ret
}
