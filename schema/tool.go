package schema

import "encoding/json"

type (
	// Tool represents a tool advertised by a backend server
	Tool struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	}

	// ListToolsResult represents tools/list result
	ListToolsResult struct {
		Tools []*Tool `json:"tools"`
	}

	// CallToolRequestParams represents tools/call params
	CallToolRequestParams struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments,omitempty"`
	}
)

// Clone returns a copy of the tool exposed under a different name
func (t *Tool) Clone(name string) *Tool {
	ret := *t
	ret.Name = name
	return &ret
}
