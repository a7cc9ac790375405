package connection

import (
	"log/slog"
	"time"

	"github.com/viant/mcp-proxy/transport"
)

// Observer receives backend operation outcomes, e.g. for metrics
type Observer interface {
	ObserveBackend(server, operation string, elapsed time.Duration, err error)
}

// Option represents connection option
type Option func(c *Connection)

// WithLogger sets logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithTransportOptions adds options passed to every client created for this connection
func WithTransportOptions(options ...transport.Option) Option {
	return func(c *Connection) {
		c.options = append(c.options, options...)
	}
}

// WithFactory overrides client factory
func WithFactory(factory transport.Factory) Option {
	return func(c *Connection) {
		c.factory = factory
	}
}

// WithObserver sets backend operation observer
func WithObserver(observer Observer) Option {
	return func(c *Connection) {
		c.observer = observer
	}
}
