package mcpproxy

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	protoschema "github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-proxy/config"
	"github.com/viant/mcp-proxy/connection"
	"github.com/viant/mcp-proxy/router"
	"github.com/viant/mcp-proxy/server"
)

// ServerOptions defines options for configuring the proxy server.
type ServerOptions struct {
	Name            string           `yaml:"name" json:"name"`
	Version         string           `yaml:"version" json:"version"`
	Servers         []*config.Server `yaml:"servers" json:"servers"`
	AllowedCommands []string         `yaml:"allowedCommands" json:"allowedCommands"`
	Listen          string           `yaml:"listen" json:"listen"`
	BasePath        *string          `yaml:"basePath" json:"basePath"`
	Timeouts        config.Timeouts  `yaml:"timeouts" json:"timeouts"`
	Cors            *server.Cors     `yaml:"cors" json:"cors"`
	SweepInterval   time.Duration    `yaml:"sweepInterval" json:"sweepInterval"`
	Concurrency     int              `yaml:"concurrency" json:"concurrency"`
}

// ClientOptions returns per backend client options
func (o *ServerOptions) ClientOptions(srv *config.Server) *ClientOptions {
	return &ClientOptions{
		Name:            srv.Name,
		Endpoint:        srv.Endpoint,
		AllowedCommands: o.AllowedCommands,
		MetadataTimeout: o.Timeouts.Metadata,
		CallTimeout:     o.Timeouts.Call,
		EndpointTimeout: o.Timeouts.Endpoint,
	}
}

// NewServer creates the proxy server with a router holding one connection per configured backend.
// Backends with an unsupported endpoint or a duplicate name are logged and skipped; nothing is connected until Start.
func NewServer(options *ServerOptions, logger *slog.Logger) (*server.Server, error) {
	if options == nil {
		return nil, fmt.Errorf("server options were nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	metrics := server.NewMetrics()
	backends := router.New(router.WithLogger(logger), router.WithConcurrency(options.Concurrency))
	for _, srv := range options.Servers {
		conn, err := NewConnection(options.ClientOptions(srv), logger, connection.WithObserver(metrics))
		if err != nil {
			logger.Error("skipping server", "server", srv.Name, "endpoint", srv.Endpoint, "error", err)
			continue
		}
		if err = backends.Add(conn); err != nil {
			if errors.Is(err, router.ErrDuplicateServer) {
				logger.Error("skipping server", "server", srv.Name, "error", err)
				continue
			}
			return nil, err
		}
	}
	if len(options.AllowedCommands) == 0 {
		logger.Warn("no stdio command allowlist configured, all stdio commands will be allowed")
	}

	serverOptions := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(metrics),
	}
	if options.Name != "" || options.Version != "" {
		serverOptions = append(serverOptions, server.WithImplementation(protoschema.Implementation{
			Name:    options.Name,
			Version: options.Version,
		}))
	}
	if options.BasePath != nil {
		serverOptions = append(serverOptions, server.WithBasePath(*options.BasePath))
	}
	if options.Listen != "" {
		serverOptions = append(serverOptions, server.WithAddr(options.Listen))
	}
	if options.Cors != nil {
		serverOptions = append(serverOptions, server.WithCORS(options.Cors))
	}
	if options.SweepInterval > 0 {
		serverOptions = append(serverOptions, server.WithSweepInterval(options.SweepInterval))
	}
	return server.New(backends, serverOptions...)
}
