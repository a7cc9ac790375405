package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/viant/mcp-protocol/schema"
)

const (
	// DefaultMetadataTimeout bounds initialize and catalog listing
	DefaultMetadataTimeout = 10 * time.Second
	// DefaultCallTimeout bounds tools/call and resources/read
	DefaultCallTimeout = 30 * time.Second
	// DefaultEndpointTimeout bounds the wait for the SSE endpoint event
	DefaultEndpointTimeout = 5 * time.Second
)

// Options represents client options
type Options struct {
	Name            string
	Logger          *slog.Logger
	HTTPClient      *http.Client
	Allowlist       *Allowlist
	Env             []string
	ClientInfo      schema.Implementation
	MetadataTimeout time.Duration
	CallTimeout     time.Duration
	EndpointTimeout time.Duration
}

// Option represents client option
type Option func(o *Options)

// WithName sets backend server name used in logs
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithLogger sets logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithHTTPClient sets http client used by HTTP and SSE variants
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// WithAllowlist restricts commands a stdio client may spawn
func WithAllowlist(allowlist *Allowlist) Option {
	return func(o *Options) {
		o.Allowlist = allowlist
	}
}

// WithEnv adds environment variables (KEY=VALUE) to spawned processes
func WithEnv(env ...string) Option {
	return func(o *Options) {
		o.Env = append(o.Env, env...)
	}
}

// WithClientInfo sets identity sent with initialize
func WithClientInfo(info schema.Implementation) Option {
	return func(o *Options) {
		o.ClientInfo = info
	}
}

// WithTimeouts sets metadata and call timeouts, zero keeps default
func WithTimeouts(metadata, call time.Duration) Option {
	return func(o *Options) {
		if metadata > 0 {
			o.MetadataTimeout = metadata
		}
		if call > 0 {
			o.CallTimeout = call
		}
	}
}

// WithEndpointTimeout sets how long SSE calls wait for the endpoint event
func WithEndpointTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.EndpointTimeout = timeout
	}
}

func newOptions(kind Kind, options []Option) *Options {
	ret := &Options{
		ClientInfo:      schema.Implementation{Name: "mcp-proxy", Version: "1.0.0"},
		MetadataTimeout: DefaultMetadataTimeout,
		CallTimeout:     DefaultCallTimeout,
		EndpointTimeout: DefaultEndpointTimeout,
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.Logger == nil {
		ret.Logger = slog.Default()
	}
	if ret.HTTPClient == nil {
		ret.HTTPClient = http.DefaultClient
	}
	ret.Logger = ret.Logger.With("server", ret.Name, "transport", string(kind))
	return ret
}
