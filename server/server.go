package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	protoschema "github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-proxy/internal/collection"
	"github.com/viant/mcp-proxy/router"
)

const (
	defaultBasePath = "/mcp/v1"
	defaultAddr     = "127.0.0.1:5000"
)

// Server exposes the aggregated catalog of a router over MCP
type Server struct {
	router        *router.Router
	info          protoschema.Implementation
	logger        *slog.Logger
	metrics       *Metrics
	sessions      *SessionManager
	basePath      string
	addr          string
	corsConfig    *Cors
	sweepInterval time.Duration
	clock         clockwork.Clock
	ready         atomic.Bool
	mux           sync.Mutex
	httpServer    *http.Server
}

// NewHandler creates a dispatcher for one client
func (s *Server) NewHandler(state State) *Handler {
	ret := &Handler{
		Server:         s,
		activeContexts: collection.NewSyncMap[string, *activeContext](),
		logger:         s.logger,
	}
	ret.state.Store(int32(state))
	return ret
}

// AsClient returns an in-process client backed by a fresh dispatcher
func (s *Server) AsClient() *Adapter {
	return NewAdapter(s)
}

// Sessions returns the SSE session registry
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Metrics returns server metrics
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// BasePath returns the path all routes are mounted under
func (s *Server) BasePath() string {
	return s.basePath
}

// SetReady marks backends started; health reports DOWN until then
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// HTTP creates an http.Server serving the proxy routes
func (s *Server) HTTP(_ context.Context, addr string) *http.Server {
	if addr == "" {
		addr = s.addr
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mux.Lock()
	s.httpServer = server
	s.mux.Unlock()
	return server
}

// Router returns the backend router
func (s *Server) Router() *router.Router {
	return s.router
}

// Start connects every backend and marks the server ready
func (s *Server) Start(ctx context.Context) error {
	if err := s.router.Start(ctx); err != nil {
		return err
	}
	s.SetReady(true)
	return nil
}

// Shutdown closes every SSE session, stops the http server if one was created and disconnects backends
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.sessions.Shutdown()
	s.mux.Lock()
	server := s.httpServer
	s.mux.Unlock()
	var err error
	if server != nil {
		if err = server.Shutdown(ctx); errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}
	if stopErr := s.router.Stop(); err == nil {
		err = stopErr
	}
	return err
}

// New creates a server for the supplied router
func New(router *router.Router, options ...Option) (*Server, error) {
	if router == nil {
		return nil, errors.New("router was nil")
	}
	s := &Server{
		router: router,
		info: protoschema.Implementation{
			Name:    "mcp-proxy",
			Version: "1.0.0",
		},
		basePath: defaultBasePath,
		addr:     defaultAddr,
		clock:    clockwork.NewRealClock(),
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.corsConfig == nil {
		s.corsConfig = defaultCors()
	}
	s.sessions = NewSessionManager(func() *Handler { return s.NewHandler(Uninitialized) },
		WithSessionClock(s.clock),
		WithSessionSweepInterval(s.sweepInterval),
		WithSessionLogger(s.logger),
		WithSessionMetrics(s.metrics))
	return s, nil
}
