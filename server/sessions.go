package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/viant/mcp-proxy/internal/collection"
)

const (
	sessionPrefix        = "mcp-sse-"
	sessionHeader        = "X-Session-ID"
	sessionQuery         = "session"
	defaultSweepInterval = 30 * time.Second
)

// SessionManager owns the downstream SSE sessions of one server
type SessionManager struct {
	newHandler func() *Handler
	sessions   *collection.SyncMap[string, *Session]
	counter    atomic.Uint64
	clock      clockwork.Clock
	interval   time.Duration
	logger     *slog.Logger
	metrics    *Metrics
	stop       chan struct{}
	stopOnce   sync.Once
	sweepDone  chan struct{}
}

// Create opens an event stream on w, registers the session and announces its message endpoint
func (m *SessionManager) Create(w http.ResponseWriter, r *http.Request, basePath string) (*Session, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by %T", w)
	}
	id := fmt.Sprintf("%s%d", sessionPrefix, m.counter.Add(1))
	ctx, cancel := context.WithCancel(r.Context())
	session := &Session{
		id:      id,
		handler: m.newHandler(),
		logger:  m.logger.With("session", id),
		writer:  w,
		flusher: flusher,
		ctx:     ctx,
		cancel:  cancel,
		onClose: m.unregister,
	}
	header := w.Header()
	header.Set("Content-Type", mediaTypeEventStream)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	m.sessions.Put(id, session)
	if m.metrics != nil {
		m.metrics.sessions.Inc()
	}
	if err := session.Send(eventConnected, id); err != nil {
		m.Remove(id)
		return nil, err
	}
	if err := session.Send(eventEndpoint, messageEndpoint(r.URL.Path, basePath, id)); err != nil {
		m.Remove(id)
		return nil, err
	}
	m.logger.Info("sse session created", "session", id, "remote", r.RemoteAddr)
	return session, nil
}

// Get returns open session
func (m *SessionManager) Get(id string) (*Session, bool) {
	session, ok := m.sessions.Get(id)
	if !ok || session.Closed() {
		return nil, false
	}
	return session, true
}

// Dispatch hands a message to the session's dispatcher; the response is emitted on its stream
func (m *SessionManager) Dispatch(ctx context.Context, id string, data []byte) error {
	session, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %v", ErrSessionNotFound, id)
	}
	session.Handle(ctx, data)
	return nil
}

// Remove closes and unregisters session
func (m *SessionManager) Remove(id string) {
	session, ok := m.sessions.Get(id)
	if !ok {
		return
	}
	session.Close()
}

func (m *SessionManager) unregister(id string) {
	if _, ok := m.sessions.Take(id); !ok {
		return
	}
	if m.metrics != nil {
		m.metrics.sessions.Dec()
	}
	m.logger.Debug("sse session removed", "session", id)
}

// Count returns number of open sessions
func (m *SessionManager) Count() int {
	return m.sessions.Len()
}

// Sweep closes and unregisters sessions whose client went away, returns removed count
func (m *SessionManager) Sweep() int {
	var stale []*Session
	removed := m.sessions.DeleteFunc(func(id string, session *Session) bool {
		if session.Closed() || session.ctx.Err() != nil {
			stale = append(stale, session)
			return true
		}
		return false
	})
	for _, session := range stale {
		session.Close()
	}
	if removed > 0 {
		if m.metrics != nil {
			m.metrics.sessions.Sub(float64(removed))
		}
		m.logger.Debug("swept stale sessions", "removed", removed)
	}
	return removed
}

func (m *SessionManager) sweep() {
	defer close(m.sweepDone)
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}

// Shutdown stops the sweep and closes every session
func (m *SessionManager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.sweepDone
	})
	for _, session := range m.sessions.Values() {
		m.Remove(session.ID())
	}
}

// NewSessionManager creates a registry and starts its periodic sweep
func NewSessionManager(newHandler func() *Handler, options ...SessionOption) *SessionManager {
	ret := &SessionManager{
		newHandler: newHandler,
		sessions:   collection.NewSyncMap[string, *Session](),
		clock:      clockwork.NewRealClock(),
		interval:   defaultSweepInterval,
		stop:       make(chan struct{}),
		sweepDone:  make(chan struct{}),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	go ret.sweep()
	return ret
}

// SessionOption represents session manager option
type SessionOption func(m *SessionManager)

// WithSessionClock sets the clock driving the sweep
func WithSessionClock(clock clockwork.Clock) SessionOption {
	return func(m *SessionManager) {
		m.clock = clock
	}
}

// WithSessionSweepInterval sets how often closed sessions are removed
func WithSessionSweepInterval(interval time.Duration) SessionOption {
	return func(m *SessionManager) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithSessionLogger sets session logger
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(m *SessionManager) {
		m.logger = logger
	}
}

// WithSessionMetrics sets metrics tracking open sessions
func WithSessionMetrics(metrics *Metrics) SessionOption {
	return func(m *SessionManager) {
		m.metrics = metrics
	}
}

// sessionID reads the session id from the X-Session-ID header or the session query parameter
func sessionID(r *http.Request) string {
	if id := r.Header.Get(sessionHeader); id != "" {
		return id
	}
	return r.URL.Query().Get(sessionQuery)
}

// messageEndpoint derives the POST path announced to an SSE client
func messageEndpoint(requestPath, basePath, id string) string {
	var endpoint string
	switch {
	case strings.HasSuffix(requestPath, "/sse"):
		endpoint = strings.TrimSuffix(requestPath, "/sse") + "/message"
	case strings.HasSuffix(requestPath, "/api"):
		endpoint = strings.TrimSuffix(requestPath, "/api") + "/message"
	default:
		endpoint = strings.TrimSuffix(basePath, "/") + "/message"
	}
	return endpoint + "?" + sessionQuery + "=" + url.QueryEscape(id)
}
