package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/viant/jsonrpc"
)

const metricsNamespace = "mcp_proxy"

// Metrics collects proxy metrics in a private registry
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	sessions        prometheus.Gauge
	backendDuration *prometheus.HistogramVec
	backendErrors   *prometheus.CounterVec
	servers         prometheus.Gauge
	tools           prometheus.Gauge
	resources       prometheus.Gauge
}

// ObserveRequest counts a dispatched JSON-RPC request by method and error code
func (m *Metrics) ObserveRequest(method string, rpcError *jsonrpc.Error) {
	code := "0"
	if rpcError != nil {
		code = strconv.Itoa(int(rpcError.Code))
	}
	m.requests.WithLabelValues(method, code).Inc()
}

// ObserveBackend records a backend operation outcome
func (m *Metrics) ObserveBackend(server, operation string, elapsed time.Duration, err error) {
	m.backendDuration.WithLabelValues(server, operation).Observe(elapsed.Seconds())
	if err != nil {
		m.backendErrors.WithLabelValues(server, operation).Inc()
	}
}

// handler serves Prometheus text format; catalog gauges are refreshed on every scrape
func (m *Metrics) handler(snapshot func() (servers, tools, resources int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if snapshot != nil {
			servers, tools, resources := snapshot()
			m.servers.Set(float64(servers))
			m.tools.Set(float64(tools))
			m.resources.Set(float64(resources))
		}
		metricFamilies, err := m.registry.Gather()
		if err != nil {
			http.Error(w, "Failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", string(expfmt.FmtText))
		encoder := expfmt.NewEncoder(w, expfmt.FmtText)
		for _, mf := range metricFamilies {
			if err := encoder.Encode(mf); err != nil {
				http.Error(w, "Failed to encode metrics", http.StatusInternalServerError)
				return
			}
		}
	}
}

// NewMetrics creates metrics registered in a new registry
func NewMetrics() *Metrics {
	ret := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "JSON-RPC requests dispatched, by method and error code (0 on success)",
		}, []string{"method", "code"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sse_sessions",
			Help:      "Open downstream SSE sessions",
		}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "backend_duration_seconds",
			Help:      "Backend operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"server", "operation"}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backend_errors_total",
			Help:      "Failed backend operations",
		}, []string{"server", "operation"}),
		servers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connected_servers",
			Help:      "Connected backend servers",
		}),
		tools: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "aggregated_tools",
			Help:      "Tools in the aggregated catalog",
		}),
		resources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "aggregated_resources",
			Help:      "Resources in the aggregated catalog",
		}),
	}
	ret.registry.MustRegister(ret.requests, ret.sessions, ret.backendDuration, ret.backendErrors, ret.servers, ret.tools, ret.resources)
	return ret
}
