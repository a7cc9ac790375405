package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/mcp-proxy/server"
	"github.com/viant/mcp-proxy/transport"
	"gopkg.in/yaml.v3"
)

type (
	// Server represents one configured backend
	Server struct {
		Name     string `yaml:"name" json:"name"`
		Endpoint string `yaml:"endpoint" json:"endpoint"`
	}

	// Timeouts bounds backend operations, zero keeps the transport default
	Timeouts struct {
		Metadata time.Duration `yaml:"metadata,omitempty" json:"metadata,omitempty"`
		Call     time.Duration `yaml:"call,omitempty" json:"call,omitempty"`
		Endpoint time.Duration `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	}

	// Log represents logging settings
	Log struct {
		Level  string `yaml:"level,omitempty" json:"level,omitempty"`
		Format string `yaml:"format,omitempty" json:"format,omitempty"`
	}

	// Config represents the proxy configuration file
	Config struct {
		Servers         []*Server    `yaml:"servers,omitempty" json:"servers,omitempty"`
		AllowedCommands []string     `yaml:"allowedCommands,omitempty" json:"allowedCommands,omitempty"`
		Listen          string       `yaml:"listen,omitempty" json:"listen,omitempty"`
		BasePath        string       `yaml:"basePath,omitempty" json:"basePath,omitempty"`
		Timeouts        Timeouts     `yaml:"timeouts,omitempty" json:"timeouts,omitempty"`
		Log             Log          `yaml:"log,omitempty" json:"log,omitempty"`
		Cors            *server.Cors `yaml:"cors,omitempty" json:"cors,omitempty"`
	}
)

// Validate checks that every backend has a name and a supported endpoint
func (c *Config) Validate() error {
	names := map[string]bool{}
	for i, srv := range c.Servers {
		if srv == nil || strings.TrimSpace(srv.Name) == "" {
			return fmt.Errorf("servers[%d]: name was empty", i)
		}
		if names[srv.Name] {
			return fmt.Errorf("servers[%d]: duplicate name %v", i, srv.Name)
		}
		names[srv.Name] = true
		if _, err := transport.ParseEndpoint(srv.Endpoint); err != nil {
			return fmt.Errorf("servers[%d] (%v): %w", i, srv.Name, err)
		}
	}
	return nil
}

// Allowlist returns the stdio allowlist, nil when unrestricted
func (c *Config) Allowlist() *transport.Allowlist {
	if len(c.AllowedCommands) == 0 {
		return nil
	}
	ret := transport.NewAllowlist(c.AllowedCommands...)
	if ret.IsEmpty() {
		return nil
	}
	return ret
}

// Load downloads and decodes a YAML config from any afs supported URL
func Load(ctx context.Context, URL string) (*Config, error) {
	return LoadWith(ctx, afs.New(), URL)
}

// LoadWith loads config with supplied storage service
func LoadWith(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download config %v: %w", URL, err)
	}
	ret := &Config{}
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	for _, srv := range ret.Servers {
		if srv != nil {
			srv.Name = strings.TrimSpace(srv.Name)
			srv.Endpoint = strings.TrimSpace(srv.Endpoint)
		}
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}

// ParseServers parses comma separated "name:endpoint" pairs; entries without a name or endpoint are skipped
func ParseServers(spec string, logger *slog.Logger) []*Server {
	if logger == nil {
		logger = slog.Default()
	}
	var result []*Server
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		index := strings.Index(item, ":")
		if index <= 0 || index >= len(item)-1 {
			logger.Warn("skipping malformed server entry, expected name:endpoint", "entry", item)
			continue
		}
		name := strings.TrimSpace(item[:index])
		endpoint := strings.TrimSpace(item[index+1:])
		if name == "" || endpoint == "" {
			logger.Warn("skipping malformed server entry, expected name:endpoint", "entry", item)
			continue
		}
		result = append(result, &Server{Name: name, Endpoint: endpoint})
	}
	return result
}

// ParseAllowlist parses comma separated executable basenames; blank input means every command is allowed
func ParseAllowlist(spec string, logger *slog.Logger) *transport.Allowlist {
	if logger == nil {
		logger = slog.Default()
	}
	allowlist := transport.NewAllowlist(strings.Split(spec, ",")...)
	if allowlist.IsEmpty() {
		logger.Warn("no stdio command allowlist configured, all stdio commands will be allowed")
		return nil
	}
	logger.Info("configured stdio allowed commands", "commands", allowlist.Commands())
	return allowlist
}
