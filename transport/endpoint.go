package transport

import (
	"strings"
)

// Kind represents transport kind
type Kind string

const (
	KindStdio     Kind = "stdio"
	KindHTTP      Kind = "http"
	KindSSE       Kind = "sse"
	KindCustomSSE Kind = "custom-http-sse"
)

// IsStreaming returns true for transports holding a long lived event stream
func (k Kind) IsStreaming() bool {
	return k == KindSSE || k == KindCustomSSE
}

// Endpoint represents a parsed backend endpoint
type Endpoint struct {
	Kind Kind
	// URL is the http(s) base for HTTP and SSE kinds
	URL string
	// Command and Args are set for stdio kind
	Command string
	Args    []string
}

var schemes = []struct {
	prefix string
	kind   Kind
	scheme string
}{
	{"stdio://", KindStdio, ""},
	{"custom-http-sse://", KindCustomSSE, "http://"},
	{"custom-https-sse://", KindCustomSSE, "https://"},
	{"sse://", KindSSE, "http://"},
	{"sses://", KindSSE, "https://"},
	{"http://", KindHTTP, "http://"},
	{"https://", KindHTTP, "https://"},
}

// ParseEndpoint selects transport kind from endpoint scheme
func ParseEndpoint(endpoint string) (*Endpoint, error) {
	trimmed := strings.TrimSpace(endpoint)
	for _, candidate := range schemes {
		if !strings.HasPrefix(trimmed, candidate.prefix) {
			continue
		}
		rest := trimmed[len(candidate.prefix):]
		if candidate.kind == KindStdio {
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				return nil, &UnsupportedEndpointError{Endpoint: endpoint}
			}
			return &Endpoint{Kind: KindStdio, Command: fields[0], Args: fields[1:]}, nil
		}
		if rest == "" {
			return nil, &UnsupportedEndpointError{Endpoint: endpoint}
		}
		return &Endpoint{Kind: candidate.kind, URL: candidate.scheme + rest}, nil
	}
	return nil, &UnsupportedEndpointError{Endpoint: endpoint}
}

// streamURL returns base + "/sse" unless base already points at the stream
func streamURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/sse") {
		return base
	}
	return base + "/sse"
}

// messageURL returns base + "/message" for the custom variant
func messageURL(base string) string {
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/sse")
	return base + "/message"
}
