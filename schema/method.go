package schema

const (
	MethodInitialize              = "initialize"
	MethodResourcesList           = "resources/list"
	MethodResourcesRead           = "resources/read"
	MethodToolsList               = "tools/list"
	MethodToolsCall               = "tools/call"
	MethodNotificationInitialized = "notifications/initialized"
	MethodNotificationCancelled   = "notifications/cancelled"
	// MethodInitialized is the bare notification name still sent by older clients
	MethodInitialized = "initialized"
)

// ProtocolVersion is the MCP revision spoken on both sides of the proxy
const ProtocolVersion = "2024-11-05"
