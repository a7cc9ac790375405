package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// stream is the SSE core shared by the standard and custom variants:
// responses arrive on a GET event stream, requests are POSTed to a message endpoint
type stream struct {
	*protocol
	correlator    *Correlator
	kind          Kind
	streamURL     string
	client        *http.Client
	endpointMux   sync.RWMutex
	endpoint      string
	endpointReady chan struct{}
	endpointOnce  sync.Once
	readerDone    chan struct{}
	closed        atomic.Bool
	cancel        context.CancelFunc
	body          io.ReadCloser
	options       *Options
}

// Kind returns transport kind
func (s *stream) Kind() Kind {
	return s.kind
}

// IsAlive returns true while the event stream reader runs and the client is not closed
func (s *stream) IsAlive() bool {
	if s.closed.Load() {
		return false
	}
	select {
	case <-s.readerDone:
		return false
	default:
		return true
	}
}

// Close cancels the event stream; pending calls fail with ErrClosed
func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.correlator.Close(ErrClosed)
	s.cancel()
	if s.body != nil {
		_ = s.body.Close()
	}
	select {
	case <-s.readerDone:
	case <-time.After(time.Second):
		s.logger.Debug("event stream reader did not stop")
	}
	return nil
}

// Endpoint returns the message endpoint, empty until announced
func (s *stream) Endpoint() string {
	s.endpointMux.RLock()
	defer s.endpointMux.RUnlock()
	return s.endpoint
}

func (s *stream) setEndpoint(value string) {
	resolved, err := resolveEndpoint(s.streamURL, strings.TrimSpace(value))
	if err != nil {
		s.logger.Warn("invalid message endpoint", "endpoint", value, "error", err)
		return
	}
	s.endpointMux.Lock()
	s.endpoint = resolved
	s.endpointMux.Unlock()
	s.endpointOnce.Do(func() { close(s.endpointReady) })
	s.logger.Debug("message endpoint set", "endpoint", resolved)
}

func (s *stream) awaitEndpoint(ctx context.Context) (string, error) {
	timer := time.NewTimer(s.options.EndpointTimeout)
	defer timer.Stop()
	select {
	case <-s.endpointReady:
		return s.Endpoint(), nil
	case <-timer.C:
		return "", ErrNoEndpoint
	case <-s.readerDone:
		return "", ErrNoEndpoint
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *stream) write(ctx context.Context, data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	endpoint, err := s.awaitEndpoint(ctx)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("failed to post to %v: %w", endpoint, err)
	}
	defer response.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(response.Body, maxFrameSize))
	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusAccepted {
		return &HTTPStatusError{URL: endpoint, StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	// some servers answer inline in addition to (or instead of) the stream
	if body = bytes.TrimSpace(body); len(body) > 0 && json.Valid(body) {
		s.correlator.Deliver(body)
	}
	return nil
}

// open issues the GET; ctx and the metadata timeout bound the wait for response headers only
func (s *stream) open(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	request, err := http.NewRequestWithContext(streamCtx, http.MethodGet, s.streamURL, nil)
	if err != nil {
		cancel()
		return err
	}
	request.Header.Set("Accept", "text/event-stream")
	request.Header.Set("Cache-Control", "no-cache")
	connected := make(chan struct{})
	expired := make(chan struct{})
	go func() {
		timer := time.NewTimer(s.options.MetadataTimeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			cancel()
		case <-timer.C:
			close(expired)
			cancel()
		case <-connected:
		}
	}()
	streamClient := *s.client
	streamClient.Timeout = 0
	response, err := streamClient.Do(request)
	close(connected)
	select {
	case <-expired:
		if err == nil {
			response.Body.Close()
		}
		return fmt.Errorf("%w: event stream %v headers after %s", ErrTimeout, s.streamURL, s.options.MetadataTimeout)
	default:
	}
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open event stream %v: %w", s.streamURL, err)
	}
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		response.Body.Close()
		cancel()
		return &HTTPStatusError{URL: s.streamURL, StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	s.body = response.Body
	go s.read(response.Body)
	return nil
}

func (s *stream) read(body io.ReadCloser) {
	defer func() {
		_ = body.Close()
		close(s.readerDone)
		s.correlator.Close(ErrStreamClosed)
	}()
	err := ReadEvents(body, func(event *Event) {
		switch event.Name {
		case "endpoint":
			s.setEndpoint(event.Data)
		case "message", "":
			if data := strings.TrimSpace(event.Data); data != "" {
				s.correlator.Deliver([]byte(data))
			}
		default:
			s.logger.Debug("ignoring event", "event", event.Name)
		}
	})
	if err != nil && !s.closed.Load() {
		s.logger.Warn("event stream failed", "error", err)
	}
}

func resolveEndpoint(base, endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("empty endpoint")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	reference, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(reference).String(), nil
}

func newStream(kind Kind, base string, options []Option) *stream {
	opts := newOptions(kind, options)
	ret := &stream{
		kind:          kind,
		streamURL:     streamURL(base),
		client:        opts.HTTPClient,
		endpointReady: make(chan struct{}),
		readerDone:    make(chan struct{}),
		options:       opts,
	}
	ret.correlator = NewCorrelator(ret.write, opts.Logger)
	ret.protocol = newProtocol(ret.correlator, opts)
	return ret
}

// SSE represents a standard SSE server announcing its message endpoint with an "endpoint" event
type SSE struct {
	*stream
}

// NewSSE opens the event stream at base/sse; calls wait for the endpoint event
func NewSSE(ctx context.Context, base string, options ...Option) (*SSE, error) {
	ret := &SSE{stream: newStream(KindSSE, base, options)}
	if err := ret.open(ctx); err != nil {
		ret.correlator.Close(err)
		return nil, err
	}
	return ret, nil
}

// CustomSSE represents an HTTP+SSE server with fixed base/sse and base/message paths
type CustomSSE struct {
	*stream
}

// NewCustomSSE opens the event stream at base/sse and posts to base/message
func NewCustomSSE(ctx context.Context, base string, options ...Option) (*CustomSSE, error) {
	ret := &CustomSSE{stream: newStream(KindCustomSSE, base, options)}
	ret.setEndpoint(messageURL(base))
	if err := ret.open(ctx); err != nil {
		ret.correlator.Close(err)
		return nil, err
	}
	return ret, nil
}
