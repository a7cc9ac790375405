package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-proxy/internal/conv"
)

const sessionHeader = "Mcp-Session-Id"

// HTTP represents an MCP server reached with one POST per call
type HTTP struct {
	*protocol
	url       string
	client    *http.Client
	nextID    atomic.Int64
	closed    atomic.Bool
	mux       sync.RWMutex
	sessionID string
}

// Kind returns transport kind
func (h *HTTP) Kind() Kind {
	return KindHTTP
}

// IsAlive returns true until the client is closed
func (h *HTTP) IsAlive() bool {
	return !h.closed.Load()
}

// Close marks client closed
func (h *HTTP) Close() error {
	h.closed.Store(true)
	return nil
}

// Call posts request and decodes the response body
func (h *HTTP) Call(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	request, err := jsonrpc.NewRequest(method, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create %v request: %w", method, err)
	}
	id := h.nextID.Add(1)
	request.Jsonrpc = jsonrpc.Version
	request.Id = uint64(id)
	data, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %v request: %w", method, err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	httpResponse, err := h.post(ctx, data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v (id: %d) after %s", ErrTimeout, method, id, timeout)
		}
		return nil, err
	}
	defer httpResponse.Body.Close()
	if sessionID := httpResponse.Header.Get(sessionHeader); sessionID != "" {
		h.mux.Lock()
		h.sessionID = sessionID
		h.mux.Unlock()
	}
	message, err := h.readResponse(httpResponse, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v (id: %d) after %s", ErrTimeout, method, id, timeout)
		}
		return nil, fmt.Errorf("failed to read %v response: %w", method, err)
	}
	if message.Error != nil {
		return nil, message.Error
	}
	return message.Result, nil
}

// Notify posts notification, response body is ignored
func (h *HTTP) Notify(ctx context.Context, method string, params interface{}) error {
	if h.closed.Load() {
		return ErrClosed
	}
	data, err := encodeNotification(method, params)
	if err != nil {
		return err
	}
	httpResponse, err := h.post(ctx, data)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, httpResponse.Body)
	return httpResponse.Body.Close()
}

func (h *HTTP) post(ctx context.Context, data []byte) (*http.Response, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json, text/event-stream")
	h.mux.RLock()
	if h.sessionID != "" {
		httpRequest.Header.Set(sessionHeader, h.sessionID)
	}
	h.mux.RUnlock()
	httpResponse, err := h.client.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to post to %v: %w", h.url, err)
	}
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 1024))
		httpResponse.Body.Close()
		return nil, &HTTPStatusError{URL: h.url, StatusCode: httpResponse.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return httpResponse, nil
}

// readResponse decodes a JSON body, or scans an event stream body for the matching response
func (h *HTTP) readResponse(httpResponse *http.Response, id int64) (*frame, error) {
	mediaType, _, _ := mime.ParseMediaType(httpResponse.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		var result *frame
		err := ReadEvents(httpResponse.Body, func(event *Event) {
			if result != nil {
				return
			}
			candidate := &frame{}
			if json.Unmarshal([]byte(event.Data), candidate) != nil {
				return
			}
			if actual, ok := conv.AsInt64(candidate.Id); ok && actual == id && candidate.Method == "" {
				result = candidate
			}
		})
		if result != nil {
			return result, nil
		}
		if err == nil {
			err = fmt.Errorf("event stream ended without response id: %d", id)
		}
		return nil, err
	}
	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, err
	}
	message := &frame{}
	if err = json.Unmarshal(body, message); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC response: %w", err)
	}
	if actual, ok := conv.AsInt64(message.Id); ok && actual != id {
		return nil, fmt.Errorf("response id mismatch: expected %d, got %d", id, actual)
	}
	return message, nil
}

// NewHTTP creates an HTTP unary client
func NewHTTP(url string, options ...Option) *HTTP {
	opts := newOptions(KindHTTP, options)
	ret := &HTTP{url: url, client: opts.HTTPClient}
	ret.protocol = newProtocol(ret, opts)
	return ret
}
