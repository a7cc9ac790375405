package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	mcpproxy "github.com/viant/mcp-proxy"
	"github.com/viant/mcp-proxy/config"
	"github.com/viant/mcp-proxy/server"
)

// Service runs the proxy server
type Service struct {
	options       *Options
	serverOptions *mcpproxy.ServerOptions
	logger        *slog.Logger
	server        *server.Server
}

// Server returns proxy server
func (s *Service) Server() *server.Server {
	return s.server
}

// Logger returns service logger
func (s *Service) Logger() *slog.Logger {
	return s.logger
}

// Serve connects backends, then serves HTTP on listener until ctx is done
func (s *Service) Serve(ctx context.Context, listener net.Listener) error {
	if err := s.server.Start(ctx); err != nil {
		return err
	}
	httpServer := s.server.HTTP(ctx, listener.Addr().String())
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()
	s.logger.Info("mcp proxy listening", "addr", listener.Addr().String(), "basePath", s.server.BasePath())
	select {
	case err := <-errCh:
		_ = s.server.Shutdown(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until ctx is done
func (s *Service) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.listen())
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

func (s *Service) listen() string {
	return s.serverOptions.Listen
}

// New creates a service, merging the optional config file with flags
func New(ctx context.Context, options *Options, logOutput io.Writer) (*Service, error) {
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = defaultShutdownTimeout
	}
	cfg := &config.Config{}
	if options.ConfigURL != "" {
		var err error
		if cfg, err = config.Load(ctx, options.ConfigURL); err != nil {
			return nil, err
		}
	}
	logger, err := NewLogger(logOutput, firstNonEmpty(options.LogLevel, cfg.Log.Level), firstNonEmpty(options.LogFormat, cfg.Log.Format))
	if err != nil {
		return nil, err
	}
	serverOptions := merge(options, cfg, logger)
	if len(serverOptions.Servers) == 0 {
		logger.Warn("no MCP servers configured")
	}
	srv, err := mcpproxy.NewServer(serverOptions, logger)
	if err != nil {
		return nil, err
	}
	return &Service{options: options, logger: logger, server: srv, serverOptions: serverOptions}, nil
}

// merge applies flag values over config file values
func merge(options *Options, cfg *config.Config, logger *slog.Logger) *mcpproxy.ServerOptions {
	ret := &mcpproxy.ServerOptions{
		Listen:          firstNonEmpty(options.Listen, cfg.Listen, defaultListen),
		AllowedCommands: cfg.AllowedCommands,
		Timeouts:        cfg.Timeouts,
		Cors:            cfg.Cors,
	}
	if options.AllowedCommands != "" {
		if allowlist := config.ParseAllowlist(options.AllowedCommands, logger); allowlist != nil {
			ret.AllowedCommands = allowlist.Commands()
		}
	}
	if basePath := firstNonEmpty(options.BasePath, cfg.BasePath); basePath != "" {
		if basePath == "/" {
			basePath = ""
		}
		ret.BasePath = &basePath
	}
	if options.MetadataTimeout > 0 {
		ret.Timeouts.Metadata = options.MetadataTimeout
	}
	if options.CallTimeout > 0 {
		ret.Timeouts.Call = options.CallTimeout
	}
	if options.EndpointTimeout > 0 {
		ret.Timeouts.Endpoint = options.EndpointTimeout
	}
	flagServers := config.ParseServers(options.Servers, logger)
	overrides := map[string]*config.Server{}
	for _, srv := range flagServers {
		overrides[srv.Name] = srv
	}
	for _, srv := range cfg.Servers {
		if override, ok := overrides[srv.Name]; ok {
			ret.Servers = append(ret.Servers, override)
			delete(overrides, srv.Name)
			continue
		}
		ret.Servers = append(ret.Servers, srv)
	}
	for _, srv := range flagServers {
		if override, ok := overrides[srv.Name]; ok {
			ret.Servers = append(ret.Servers, override)
			delete(overrides, srv.Name)
		}
	}
	return ret
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
