package bridge

import "time"

const (
	defaultListen          = "127.0.0.1:5000"
	defaultShutdownTimeout = 10 * time.Second
)

// Options represents CLI options
type Options struct {
	Servers         string        `short:"s" long:"servers" env:"MCP_PROXY_SERVERS" description:"comma separated name:endpoint backends, e.g. calc:stdio://python calc.py"`
	AllowedCommands string        `short:"a" long:"allowed-commands" env:"MCP_PROXY_ALLOWED_COMMANDS" description:"comma separated stdio executables allowed to spawn, empty allows any"`
	Listen          string        `short:"l" long:"listen" env:"MCP_PROXY_LISTEN" description:"listen address (default: 127.0.0.1:5000)"`
	BasePath        string        `short:"b" long:"base-path" env:"MCP_PROXY_BASE_PATH" description:"route prefix (default: /mcp/v1), use / to serve from the root"`
	ConfigURL       string        `short:"c" long:"config" env:"MCP_PROXY_CONFIG" description:"YAML config file URL"`
	LogLevel        string        `long:"log-level" env:"MCP_PROXY_LOG_LEVEL" description:"log level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	LogFormat       string        `long:"log-format" env:"MCP_PROXY_LOG_FORMAT" description:"log format" choice:"text" choice:"json"`
	MetadataTimeout time.Duration `long:"metadata-timeout" env:"MCP_PROXY_METADATA_TIMEOUT" description:"initialize and listing timeout"`
	CallTimeout     time.Duration `long:"call-timeout" env:"MCP_PROXY_CALL_TIMEOUT" description:"tool call and resource read timeout"`
	EndpointTimeout time.Duration `long:"endpoint-timeout" env:"MCP_PROXY_ENDPOINT_TIMEOUT" description:"sse endpoint event timeout"`
	ShutdownTimeout time.Duration `long:"shutdown-timeout" env:"MCP_PROXY_SHUTDOWN_TIMEOUT" description:"graceful shutdown timeout" default:"10s"`
}
