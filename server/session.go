package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-proxy/transport"
)

var (
	// ErrSessionClosed is returned when writing to a closed session
	ErrSessionClosed = errors.New("sse session closed")
	// ErrSessionNotFound is returned for messages addressed to an unknown session
	ErrSessionNotFound = errors.New("sse session not found")
)

const (
	eventConnected = "connected"
	eventEndpoint  = "endpoint"
	eventMessage   = "message"
)

// Session is one downstream SSE client with its own dispatcher
type Session struct {
	id      string
	handler *Handler
	logger  *slog.Logger
	mux     sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
	closed  atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	onClose func(id string)
}

// ID returns session id
func (s *Session) ID() string {
	return s.id
}

// Closed returns true once Close was called
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Initialized returns true once the client completed initialize
func (s *Session) Initialized() bool {
	return s.handler.State() == Initialized
}

// Done is closed when the session ends, either by Close or by the client going away
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Send writes one event and flushes it; a failed write closes the session
func (s *Session) Send(name, data string) error {
	err := s.write(name, data)
	if err != nil && !errors.Is(err, ErrSessionClosed) {
		s.logger.Warn("failed to send event, closing session", "event", name, "error", err)
		s.Close()
	}
	return err
}

func (s *Session) write(name, data string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.writer == nil {
		return ErrSessionClosed
	}
	event := &transport.Event{Name: name, Data: data}
	if _, err := event.WriteTo(s.writer); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Handle dispatches one message and emits the response as a message event
func (s *Session) Handle(ctx context.Context, data []byte) {
	var response []byte
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("message handling panicked", "panic", r)
				response = s.handler.encode(nil, nil, jsonrpc.NewInternalError(fmt.Sprintf("Internal error: %v", r), nil))
			}
		}()
		response = s.handler.Handle(ctx, data)
	}()
	if response == nil {
		return
	}
	if err := s.Send(eventMessage, string(response)); err != nil {
		s.logger.Debug("response dropped", "error", err)
	}
}

// Close closes the event sink first, then ends the request context and unregisters the session; safe to call repeatedly
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.mux.Lock()
	s.writer = nil
	s.flusher = nil
	s.mux.Unlock()
	s.handler.Close()
	s.cancel()
	if s.onClose != nil {
		s.onClose(s.id)
	}
	s.logger.Debug("session closed")
}
