package schema

import "github.com/viant/mcp-protocol/schema"

type (
	// InitializeResult represents the proxy answer to initialize
	InitializeResult struct {
		ProtocolVersion string                `json:"protocolVersion"`
		Capabilities    ServerCapabilities    `json:"capabilities"`
		ServerInfo      schema.Implementation `json:"serverInfo"`
	}

	// ServerCapabilities lists the features the proxy exposes; change notifications are not supported
	ServerCapabilities struct {
		Tools     ToolsCapability     `json:"tools"`
		Resources ResourcesCapability `json:"resources"`
	}

	ToolsCapability struct {
		ListChanged bool `json:"listChanged"`
	}

	ResourcesCapability struct {
		Subscribe   bool `json:"subscribe"`
		ListChanged bool `json:"listChanged"`
	}
)

// NewInitializeResult creates initialize result for supplied server identity
func NewInitializeResult(info schema.Implementation) *InitializeResult {
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      info,
	}
}
