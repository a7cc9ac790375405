package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-proxy/internal/conv"
)

// Writer writes one serialized JSON-RPC message to the backend
type Writer func(ctx context.Context, data []byte) error

// Correlator matches responses read from a stream with outstanding calls.
// The pending table is owned by a single goroutine; every other party talks to it over channels.
type Correlator struct {
	write     Writer
	logger    *slog.Logger
	nextID    atomic.Int64
	register  chan *Call
	forget    chan int64
	frames    chan []byte
	count     chan chan int
	closing   chan error
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Call represents an outstanding request
type Call struct {
	ID         int64
	Method     string
	done       chan struct{}
	result     json.RawMessage
	err        error
	correlator *Correlator
}

type notification struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type frame struct {
	Id     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *jsonrpc.Error  `json:"error,omitempty"`
}

// Send registers and writes a request, it does not wait for the response
func (c *Correlator) Send(ctx context.Context, method string, params interface{}) (*Call, error) {
	request, err := jsonrpc.NewRequest(method, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create %v request: %w", method, err)
	}
	call := &Call{ID: c.nextID.Add(1), Method: method, done: make(chan struct{}), correlator: c}
	request.Jsonrpc = jsonrpc.Version
	request.Id = uint64(call.ID)
	data, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %v request: %w", method, err)
	}
	select {
	case c.register <- call:
	case <-c.done:
		return nil, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err = c.write(ctx, data); err != nil {
		c.release(call.ID)
		return nil, fmt.Errorf("failed to send %v request: %w", method, err)
	}
	return call, nil
}

// Call sends a request and waits for its response; timeout bounds both the write and the wait
func (c *Correlator) Call(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	call, err := c.Send(ctx, method, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v after %s: %v", ErrTimeout, method, timeout, err)
		}
		return nil, err
	}
	return call.Await(ctx, timeout)
}

// Notify writes a notification, no response is expected
func (c *Correlator) Notify(ctx context.Context, method string, params interface{}) error {
	select {
	case <-c.done:
		return c.err
	default:
	}
	data, err := encodeNotification(method, params)
	if err != nil {
		return err
	}
	return c.write(ctx, data)
}

// Deliver hands a raw inbound frame to the correlation goroutine
func (c *Correlator) Deliver(data []byte) {
	message := make([]byte, len(data))
	copy(message, data)
	select {
	case c.frames <- message:
	case <-c.done:
	}
}

// Pending returns number of outstanding calls
func (c *Correlator) Pending() int {
	reply := make(chan int, 1)
	select {
	case c.count <- reply:
		return <-reply
	case <-c.done:
		return 0
	}
}

// Close fails every outstanding call with err (ErrClosed when nil) and stops correlation
func (c *Correlator) Close(err error) {
	c.closeOnce.Do(func() {
		if err == nil {
			err = ErrClosed
		}
		c.closing <- err
		<-c.done
	})
}

// Done is closed once the correlator stops
func (c *Correlator) Done() <-chan struct{} {
	return c.done
}

func (c *Correlator) release(id int64) {
	select {
	case c.forget <- id:
	case <-c.done:
	}
}

func (c *Correlator) run() {
	pending := make(map[int64]*Call)
	for {
		select {
		case call := <-c.register:
			pending[call.ID] = call
		case id := <-c.forget:
			delete(pending, id)
		case data := <-c.frames:
			c.dispatch(pending, data)
		case reply := <-c.count:
			reply <- len(pending)
		case err := <-c.closing:
			for id, call := range pending {
				delete(pending, id)
				call.resolve(nil, err)
			}
			c.err = err
			close(c.done)
			return
		}
	}
}

func (c *Correlator) dispatch(pending map[int64]*Call, data []byte) {
	message := &frame{}
	if err := json.Unmarshal(data, message); err != nil {
		c.logger.Debug("dropping non JSON-RPC frame", "error", err, "frame", truncate(data))
		return
	}
	id, ok := conv.AsInt64(message.Id)
	if !ok {
		c.logger.Debug("dropping notification", "method", message.Method)
		return
	}
	if message.Method != "" {
		c.logger.Debug("dropping server request", "method", message.Method, "id", id)
		return
	}
	call, ok := pending[id]
	if !ok {
		c.logger.Debug("dropping response without pending call", "id", id)
		return
	}
	delete(pending, id)
	if message.Error != nil {
		call.resolve(nil, message.Error)
		return
	}
	call.resolve(message.Result, nil)
}

func (c *Call) resolve(result json.RawMessage, err error) {
	c.result = result
	c.err = err
	close(c.done)
}

// Await waits for the response; on timeout or cancellation the call is removed from the pending table
func (c *Call) Await(ctx context.Context, timeout time.Duration) (json.RawMessage, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-c.done:
		return c.result, c.err
	case <-expired:
		c.correlator.release(c.ID)
		return nil, fmt.Errorf("%w: %v (id: %d) after %s", ErrTimeout, c.Method, c.ID, timeout)
	case <-ctx.Done():
		c.correlator.release(c.ID)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v (id: %d) after %s", ErrTimeout, c.Method, c.ID, timeout)
		}
		return nil, ctx.Err()
	}
}

// NewCorrelator creates a correlator writing requests with write
func NewCorrelator(write Writer, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	ret := &Correlator{
		write:    write,
		logger:   logger,
		register: make(chan *Call),
		forget:   make(chan int64),
		frames:   make(chan []byte, 64),
		count:    make(chan chan int),
		closing:  make(chan error),
		done:     make(chan struct{}),
	}
	go ret.run()
	return ret
}

func encodeNotification(method string, params interface{}) ([]byte, error) {
	message := &notification{Jsonrpc: jsonrpc.Version, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %v notification: %w", method, err)
		}
		message.Params = data
	}
	return json.Marshal(message)
}

func truncate(data []byte) string {
	if len(data) > 256 {
		return string(data[:256]) + "..."
	}
	return string(data)
}
