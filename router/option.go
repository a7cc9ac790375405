package router

import "log/slog"

const defaultConcurrency = 8

// Option represents router option
type Option func(r *Router)

// WithLogger sets logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithConcurrency limits the number of backends connected in parallel on Start
func WithConcurrency(limit int) Option {
	return func(r *Router) {
		if limit > 0 {
			r.concurrency = limit
		}
	}
}
