package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	protoschema "github.com/viant/mcp-protocol/schema"
)

// Option is a function that configures the server.
type Option func(s *Server) error

// WithCORS sets CORS settings, its origins also drive Origin validation
func WithCORS(cors *Cors) Option {
	return func(s *Server) error {
		s.corsConfig = cors
		return nil
	}
}

// WithImplementation sets the server identity returned from initialize
func WithImplementation(implementation protoschema.Implementation) Option {
	return func(s *Server) error {
		s.info = implementation
		return nil
	}
}

// WithLogger sets logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets metrics, share them with backend connections to observe backend calls
func WithMetrics(metrics *Metrics) Option {
	return func(s *Server) error {
		s.metrics = metrics
		return nil
	}
}

// WithBasePath sets the path prefix of every route
func WithBasePath(basePath string) Option {
	return func(s *Server) error {
		if basePath != "" && !strings.HasPrefix(basePath, "/") {
			return fmt.Errorf("invalid base path: %v, expected leading '/'", basePath)
		}
		s.basePath = strings.TrimSuffix(basePath, "/")
		return nil
	}
}

// WithAddr sets default listen address
func WithAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithSweepInterval sets how often closed SSE sessions are removed
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Server) error {
		s.sweepInterval = interval
		return nil
	}
}

// WithClock sets the clock driving the session sweep
func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) error {
		s.clock = clock
		return nil
	}
}
