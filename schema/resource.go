package schema

type (
	// Resource represents a resource advertised by a backend server
	Resource struct {
		URI         string  `json:"uri"`
		Name        string  `json:"name,omitempty"`
		Description string  `json:"description,omitempty"`
		MimeType    *string `json:"mimeType,omitempty"`
	}

	// ListResourcesResult represents resources/list result
	ListResourcesResult struct {
		Resources []*Resource `json:"resources"`
	}

	// ReadResourceRequestParams represents resources/read params
	ReadResourceRequestParams struct {
		URI string `json:"uri"`
	}
)

// Clone returns a copy of the resource exposed under a different uri
func (r *Resource) Clone(uri string) *Resource {
	ret := *r
	ret.URI = uri
	return &ret
}
