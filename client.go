package mcpproxy

import (
	"context"
	"log/slog"
	"time"

	protoschema "github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-proxy/connection"
	"github.com/viant/mcp-proxy/transport"
)

// ClientOptions defines options for connecting to one backend MCP server.
type ClientOptions struct {
	Name            string        `yaml:"name" json:"name" short:"n" long:"name" description:"backend name"`
	Endpoint        string        `yaml:"endpoint" json:"endpoint" short:"e" long:"endpoint" description:"backend endpoint, e.g. stdio://cmd args, http://, sse://, custom-http-sse://"`
	AllowedCommands []string      `yaml:"allowedCommands,omitempty" json:"allowedCommands,omitempty" long:"allowed-command" description:"stdio executable basename allowed to spawn"`
	Env             []string      `yaml:"env,omitempty" json:"env,omitempty" long:"env" description:"extra KEY=VALUE environment for stdio backends"`
	MetadataTimeout time.Duration `yaml:"metadataTimeout,omitempty" json:"metadataTimeout,omitempty" long:"metadata-timeout" description:"initialize and listing timeout"`
	CallTimeout     time.Duration `yaml:"callTimeout,omitempty" json:"callTimeout,omitempty" long:"call-timeout" description:"tool call and resource read timeout"`
	EndpointTimeout time.Duration `yaml:"endpointTimeout,omitempty" json:"endpointTimeout,omitempty" long:"endpoint-timeout" description:"sse endpoint event timeout"`

	// ClientInfo overrides the identity announced in initialize
	ClientInfo *protoschema.Implementation `yaml:"-" json:"-"`
}

// Init sets defaults
func (c *ClientOptions) Init() {
	if c.Name == "" {
		c.Name = "backend"
	}
}

// TransportOptions returns transport options derived from ClientOptions
func (c *ClientOptions) TransportOptions() []transport.Option {
	var result []transport.Option
	if allowlist := transport.NewAllowlist(c.AllowedCommands...); !allowlist.IsEmpty() {
		result = append(result, transport.WithAllowlist(allowlist))
	}
	if len(c.Env) > 0 {
		result = append(result, transport.WithEnv(c.Env...))
	}
	if c.MetadataTimeout > 0 || c.CallTimeout > 0 {
		result = append(result, transport.WithTimeouts(c.MetadataTimeout, c.CallTimeout))
	}
	if c.EndpointTimeout > 0 {
		result = append(result, transport.WithEndpointTimeout(c.EndpointTimeout))
	}
	if c.ClientInfo != nil {
		result = append(result, transport.WithClientInfo(*c.ClientInfo))
	}
	return result
}

// NewConnection creates a disconnected backend connection configured via ClientOptions.
func NewConnection(options *ClientOptions, logger *slog.Logger, extra ...connection.Option) (*connection.Connection, error) {
	options.Init()
	connectionOptions := []connection.Option{
		connection.WithLogger(logger),
		connection.WithTransportOptions(options.TransportOptions()...),
	}
	connectionOptions = append(connectionOptions, extra...)
	return connection.New(options.Name, options.Endpoint, connectionOptions...)
}

// NewClient creates a backend connection and performs the initialize handshake and catalog discovery.
func NewClient(ctx context.Context, options *ClientOptions, logger *slog.Logger, extra ...connection.Option) (*connection.Connection, error) {
	conn, err := NewConnection(options, logger, extra...)
	if err != nil {
		return nil, err
	}
	if err = conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}
