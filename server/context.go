package server

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/viant/mcp-proxy/internal/conv"
)

type activeContext struct {
	context.Context
	context.CancelFunc
}

// track registers a cancellable context for an in-flight request
func (h *Handler) track(parent context.Context, id json.RawMessage) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	key := requestKey(id)
	h.activeContexts.Put(key, &activeContext{Context: ctx, CancelFunc: cancel})
	return ctx, func() {
		cancel()
		h.activeContexts.Delete(key)
	}
}

// CancelOperation cancels in-flight request with supplied id
func (h *Handler) CancelOperation(id json.RawMessage) bool {
	key := requestKey(id)
	active, ok := h.activeContexts.Get(key)
	if !ok {
		return false
	}
	active.CancelFunc()
	h.activeContexts.Delete(key)
	return true
}

func (h *Handler) cancelAll() {
	h.activeContexts.DeleteFunc(func(key string, active *activeContext) bool {
		active.CancelFunc()
		return true
	})
}

// requestKey normalises ids so 7 and "7" address the same request
func requestKey(id json.RawMessage) string {
	if value, ok := conv.AsInt64(id); ok {
		return strconv.FormatInt(value, 10)
	}
	return string(id)
}
