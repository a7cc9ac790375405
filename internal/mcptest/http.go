package mcptest

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// HTTPHandler serves JSON-RPC with one POST per call
func (b *Backend) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		response := b.Handle(data)
		if response == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(response)
	})
}

// StreamServer serves the backend over GET /sse + POST /message
type StreamServer struct {
	backend  *Backend
	announce bool
	counter  atomic.Int64
	mux      sync.Mutex
	streams  map[string]chan []byte
	last     string
	// Opened counts event streams opened so far
	Opened atomic.Int64
}

// Drop closes every open event stream, simulating a backend restart
func (s *StreamServer) Drop() {
	s.mux.Lock()
	defer s.mux.Unlock()
	for id, ch := range s.streams {
		close(ch)
		delete(s.streams, id)
	}
}

func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/sse"):
		s.serveStream(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/message"):
		s.serveMessage(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *StreamServer) serveStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	id := fmt.Sprintf("%d", s.counter.Add(1))
	ch := make(chan []byte, 16)
	s.mux.Lock()
	if s.streams == nil {
		s.streams = map[string]chan []byte{}
	}
	s.streams[id] = ch
	s.last = id
	s.mux.Unlock()
	s.Opened.Add(1)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if s.announce {
		fmt.Fprintf(w, "event: endpoint\ndata: /message?sessionId=%s\n\n", id)
	} else {
		fmt.Fprint(w, ": connected\n\n")
	}
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			s.mux.Lock()
			if current, ok := s.streams[id]; ok && current == ch {
				delete(s.streams, id)
			}
			s.mux.Unlock()
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *StreamServer) serveMessage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	s.mux.Lock()
	if id == "" {
		id = s.last
	}
	ch, ok := s.streams[id]
	s.mux.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	go func() {
		response := s.backend.Handle(data)
		if response == nil {
			return
		}
		defer func() { recover() }() // stream may have been dropped
		ch <- response
	}()
}

// StreamHandler returns an SSE backend; announce controls the "endpoint" event
func (b *Backend) StreamHandler(announce bool) *StreamServer {
	return &StreamServer{backend: b, announce: announce, streams: map[string]chan []byte{}}
}
